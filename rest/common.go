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

package rest

import (
	"time"

	"github.com/gitvisor/gitvisor"
)

const (
	mimeJson = "application/json; charset=UTF-8"
)

var ok struct{}

// StatusInfo describes the supervised deployment.
type StatusInfo struct {
	State      string    `json:"state"`
	Pid        int       `json:"pid"`
	Running    bool      `json:"running"`
	LocalHead  string    `json:"localHead"`
	RemoteHead string    `json:"remoteHead"`
	Starts     int       `json:"starts"`
	TimeStamp  time.Time `json:"tstamp"`
}

// LogInfo carries status records newer than the requested ID, plus the
// newest ID for use in the next request.
type LogInfo struct {
	Id      int64                `json:"id,string"`
	Records []gitvisor.LogRecord `json:"records"`
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}
