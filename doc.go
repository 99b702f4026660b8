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

// Package gitvisor provides a small continuous-deployment supervisor.
// It tracks a single branch of a remote repository, keeps a local
// checkout in sync, and runs one user-defined long-lived process against
// that checkout, restarting it when it crashes and reloading it when the
// remote branch advances.
//
// The design is intentionally strictly sequential: a single loop ticks at
// a fixed interval, and each tick issues at most one corrective action.
// This is not a job scheduler and not a multi-service orchestrator; one
// instance supervises exactly one process and one repository.
package gitvisor
