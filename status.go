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
	"fmt"
	"log"
	"sync"
)

// Severity tags a status line.  Updated lines report routine progress,
// Success lines confirm completed actions, Warning lines report recoverable
// conditions, and Failure lines report errors that did not stop the loop.
type Severity int

const (
	Updated Severity = iota
	Success
	Warning
	Failure
)

func (s Severity) String() string {
	switch s {
	case Success:
		return "SUCCESS"
	case Warning:
		return "WARNING"
	case Failure:
		return "FAILURE"
	default:
		return "UPDATED"
	}
}

// Reporter consumes status lines from the supervision loop.  The engine
// never formats output itself; it reports severity and message through this
// port, so that decisions can be tested without capturing console output.
type Reporter interface {
	Report(sev Severity, format string, args ...interface{})
}

// MultiReporter fans a single stream of status lines out to any number of
// reporters, in the way that the console and the record log both observe
// the same events.  Reporters may be added or removed at any time.
type MultiReporter struct {
	reporters []Reporter
	lock      sync.Mutex
}

func (m *MultiReporter) Report(sev Severity, format string, args ...interface{}) {
	m.lock.Lock()
	for _, r := range m.reporters {
		r.Report(sev, format, args...)
	}
	m.lock.Unlock()
}

// AddReporter registers a reporter.  Once added, all new status lines are
// fanned out to it as well.  A reporter can only be added once.
func (m *MultiReporter) AddReporter(r Reporter) {
	m.lock.Lock()
	defer m.lock.Unlock()
	for _, x := range m.reporters {
		if x == r {
			return
		}
	}
	m.reporters = append(m.reporters, r)
}

// DelReporter removes a reporter from the fan-out list.
func (m *MultiReporter) DelReporter(r Reporter) {
	m.lock.Lock()
	defer m.lock.Unlock()
	for i, x := range m.reporters {
		if x == r {
			m.reporters = append(m.reporters[:i], m.reporters[i+1:]...)
			break
		}
	}
}

func NewMultiReporter() *MultiReporter {
	return &MultiReporter{}
}

// logReporter writes status lines to a standard logger, prefixed with the
// severity tag.
type logReporter struct {
	logger *log.Logger
}

func (l *logReporter) Report(sev Severity, format string, args ...interface{}) {
	l.logger.Printf("%s: %s", sev, fmt.Sprintf(format, args...))
}

// NewLogReporter returns a Reporter that emits "SEVERITY: message" lines
// through the given logger.
func NewLogReporter(logger *log.Logger) Reporter {
	return &logReporter{logger: logger}
}
