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
	"sync"
	"time"
)

const (
	MaxLogRecords = 1000
)

type LogRecord struct {
	Id       int64     `json:"id,string"`
	Time     time.Time `json:"time"`
	Severity string    `json:"severity"`
	Text     string    `json:"text"`
}

// Log keeps the most recent status records in a ring, for retrieval over
// the control API.  It implements Reporter, so it can hang directly off a
// MultiReporter.
type Log struct {
	records    []LogRecord
	numRecords int
	maxRecords int
	id         int64
	cvs        map[*sync.Cond]bool
	mx         sync.Mutex
}

func (l *Log) lock() {
	l.mx.Lock()
}

func (l *Log) unlock() {
	l.mx.Unlock()
}

// Report implements the Reporter interface.
func (l *Log) Report(sev Severity, format string, args ...interface{}) {
	if l.maxRecords == 0 {
		l.maxRecords = MaxLogRecords
	}
	if l.records == nil {
		l.records = make([]LogRecord, l.maxRecords)
		l.numRecords = 0
	}
	l.lock()
	idx := l.numRecords % l.maxRecords
	l.id++
	l.records[idx].Text = fmt.Sprintf(format, args...)
	l.records[idx].Severity = sev.String()
	l.records[idx].Id = l.id
	l.records[idx].Time = time.Now()
	// NB: numRecords may exceed maxRecords once the ring has looped; it
	// really tracks the next index.
	l.numRecords++
	for cv := range l.cvs {
		cv.Broadcast()
	}
	l.unlock()
}

// GetRecords returns the stored records, plus an ID suitable for use as an
// Etag.  The argument can be the last ID previously seen, in which case
// this returns nil immediately if nothing has been recorded since, without
// duplicating any records.
func (l *Log) GetRecords(last int64) ([]LogRecord, int64) {
	l.lock()
	if l.id == last {
		l.unlock()
		return nil, last
	}
	cnt := l.numRecords
	cur := l.numRecords
	if l.numRecords > l.maxRecords {
		cnt = l.maxRecords
	}
	recs := make([]LogRecord, 0, cnt)
	index := cur - cnt
	for j := 0; j < cnt; j++ {
		recs = append(recs, l.records[index%l.maxRecords])
		index++
	}
	id := l.id
	l.unlock()
	return recs, id
}

// Watch blocks until a record newer than last has been added, or the
// expiration passes.  It returns the newest ID either way.  An expiration
// of zero polls.
func (l *Log) Watch(last int64, expire time.Duration) int64 {
	expired := false
	var timer *time.Timer
	cv := sync.NewCond(&l.mx)
	if expire > 0 {
		timer = time.AfterFunc(expire, func() {
			l.lock()
			expired = true
			cv.Broadcast()
			l.unlock()
		})
	} else {
		expired = true
	}

	l.lock()
	l.cvs[cv] = true
	for {
		if l.id != last || expired {
			break
		}
		cv.Wait()
	}
	delete(l.cvs, cv)
	if l.id != last {
		last = l.id
	}
	l.unlock()
	if timer != nil {
		timer.Stop()
	}
	return last
}

// NewLog returns a Log instance.
func NewLog() *Log {
	return &Log{
		maxRecords: MaxLogRecords,
		records:    make([]LogRecord, MaxLogRecords),
		// Seeding the ID from the clock forces clients that cached IDs
		// from a previous run to invalidate after a restart.
		id:  time.Now().UnixNano(),
		cvs: make(map[*sync.Cond]bool),
	}
}
