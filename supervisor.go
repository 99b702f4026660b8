// Copyright 2025 The Gitvisor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gitvisor

import (
	"sync"
	"time"
)

// Supervisor drives the reconciliation engine: it owns the tick interval
// and the shutdown request, and sequences the initial clone and start, the
// tick loop, and the terminal shutdown.
//
// One goroutine runs the whole loop.  Ticks are strictly sequential; a
// blocking clone, remote lookup, or stop command stalls the loop until it
// completes.  The stop request is observed only at tick boundaries.
type Supervisor struct {
	eng      *Engine
	interval time.Duration
	stop     chan struct{}
	once     sync.Once
}

// Stop requests shutdown.  It is safe to call from any goroutine, any
// number of times; the request takes effect at the next tick boundary.
func (s *Supervisor) Stop() {
	s.once.Do(func() {
		close(s.stop)
	})
}

// Run performs the initial clone and process start, then ticks the engine
// at the configured interval until Stop is called, finishing with the
// terminal shutdown sequence.
//
// An absent start command is the only unconditionally fatal condition: Run
// returns ErrNoStartCommand (or the initial SpawnError) without entering
// the tick loop, and without retrying the initial clone.
func (s *Supervisor) Run() error {
	s.eng.Prepare()
	if err := s.eng.StartProcess(); err != nil {
		return err
	}

	timer := time.NewTimer(s.interval)
	defer timer.Stop()
	for {
		select {
		case <-s.stop:
			s.eng.Shutdown()
			return nil
		case <-timer.C:
			s.eng.Tick()
			timer.Reset(s.interval)
		}
	}
}

// NewSupervisor returns a supervisor ticking the engine at the given
// interval.
func NewSupervisor(eng *Engine, interval time.Duration) *Supervisor {
	return &Supervisor{
		eng:      eng,
		interval: interval,
		stop:     make(chan struct{}),
	}
}
