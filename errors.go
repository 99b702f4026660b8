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
	"errors"
	"fmt"
)

var (
	ErrNoStartCommand = errors.New("No start command configured")
	ErrMissingField   = errors.New("Missing required configuration field")
)

// SyncKind classifies repository synchronization failures, so that callers
// can choose a recovery policy without matching on message strings.
type SyncKind int

const (
	SyncNetworkFailure SyncKind = iota
	SyncApiFailure
	SyncUnauthorized
	SyncNotFound
)

func (k SyncKind) String() string {
	switch k {
	case SyncUnauthorized:
		return "unauthorized"
	case SyncNotFound:
		return "not found"
	case SyncApiFailure:
		return "api failure"
	default:
		return "network failure"
	}
}

// SyncError is any failure to clone, read, or resolve repository state.
// These are always recoverable; the loop retries on a later tick.
type SyncError struct {
	Kind SyncKind
	Err  error
}

func (e *SyncError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// ConfigError is a startup-fatal configuration problem.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return "config: " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// SpawnError is a failure to create the supervised process.  It is fatal
// at initial startup only; during crash recovery it leaves the process
// dead for the next tick to retry.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %q: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// CleanupError is a failure to remove the local checkout.  It aborts the
// current reload or recovery attempt; the next tick re-attempts.
type CleanupError struct {
	Path string
	Err  error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("cleanup %s: %v", e.Path, e.Err)
}

func (e *CleanupError) Unwrap() error {
	return e.Err
}
