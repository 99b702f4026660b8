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

// Source manages the local checkout of the tracked repository.
type Source interface {
	// EnsureClone removes any pre-existing local directory for the
	// repository and clones fresh at the configured branch.
	EnsureClone() error

	// LocalHead reads the current HEAD commit of the local checkout.
	// It returns an error if the directory does not exist or is not a
	// valid repository, and an empty hash (no error) if the checkout
	// exists but its HEAD cannot be resolved.
	LocalHead() (string, error)

	// Remove deletes the local checkout directory.
	Remove() error

	// Dir returns the path of the local checkout.
	Dir() string
}

// Remote resolves the current head commit of the tracked branch on the
// remote host.
type Remote interface {
	Head() (string, error)
}

// State is the discrete phase of the reconciliation engine.
//
// Stopped is both the initial and the terminal state; the engine enters
// Running on the first successful process start and returns to Stopped
// only through Shutdown.
type State int

const (
	Running State = iota
	CrashRecovered
	Reloading
	Draining
	Stopped
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case CrashRecovered:
		return "crash-recovered"
	case Reloading:
		return "reloading"
	case Draining:
		return "draining"
	default:
		return "stopped"
	}
}

// EngineInfo is a consistent snapshot of engine state, for the control API.
type EngineInfo struct {
	State      string
	Pid        int
	Running    bool
	LocalHead  string
	RemoteHead string
	Starts     int
	TimeStamp  time.Time
}

// Engine is the reconciliation state machine.  On each tick it decides
// whether the supervised process is alive and whether the remote branch
// has advanced, and issues at most one corrective action.
//
// Ticks are driven by a single goroutine; the mutex only protects the
// snapshot fields that the control API reads concurrently.
type Engine struct {
	cfg    *Config
	source Source
	remote Remote
	runner Runner
	rep    Reporter

	child Handle

	// pause is the settle wait after a stop command.
	pause func(time.Duration)

	mx         sync.Mutex
	state      State
	localHead  string
	remoteHead string
	starts     int
	stamp      time.Time
	forced     bool
}

func (e *Engine) report(sev Severity, format string, args ...interface{}) {
	e.rep.Report(sev, format, args...)
}

func (e *Engine) setState(s State) {
	e.mx.Lock()
	e.state = s
	e.stamp = time.Now()
	e.mx.Unlock()
}

func (e *Engine) setHeads(local, remote string) {
	e.mx.Lock()
	e.localHead = local
	e.remoteHead = remote
	e.mx.Unlock()
}

// GetInfo returns a snapshot of the engine state.
func (e *Engine) GetInfo() *EngineInfo {
	e.mx.Lock()
	defer e.mx.Unlock()
	info := &EngineInfo{
		State:      e.state.String(),
		Pid:        -1,
		Running:    e.state == Running,
		LocalHead:  e.localHead,
		RemoteHead: e.remoteHead,
		Starts:     e.starts,
		TimeStamp:  e.stamp,
	}
	if e.child != nil {
		info.Pid = e.child.Pid()
	}
	return info
}

// ForceReload requests that the next tick reload the deployment even if no
// drift is detected.  The reload still follows the normal stop, remove,
// clone, start sequence with its abort rules.
func (e *Engine) ForceReload() {
	e.mx.Lock()
	e.forced = true
	e.mx.Unlock()
	e.report(Warning, "Reload requested.")
}

func (e *Engine) takeForced() bool {
	e.mx.Lock()
	defer e.mx.Unlock()
	f := e.forced
	e.forced = false
	return f
}

// Prepare performs the initial clone.  A failure here is logged but not
// fatal; the tick loop repairs a missing checkout later.
func (e *Engine) Prepare() {
	if err := e.source.EnsureClone(); err != nil {
		e.report(Failure, "Initial clone failed: %v", err)
	} else {
		e.report(Success, "Repository prepared.")
	}
}

// StartProcess performs the initial process start.  An absent start
// command is fatal here, and only here.
func (e *Engine) StartProcess() error {
	if e.cfg.StartCmd == "" {
		return ErrNoStartCommand
	}
	if err := e.startChild(); err != nil {
		return err
	}
	e.setState(Running)
	return nil
}

func (e *Engine) startChild() error {
	e.report(Updated, "Starting supervised process...")
	h, err := e.runner.Start(e.cfg.StartCmd, e.source.Dir())
	if err != nil {
		return err
	}
	e.mx.Lock()
	e.child = h
	e.starts++
	e.stamp = time.Now()
	e.mx.Unlock()
	e.report(Success, "Process started (PID %d).", h.Pid())
	return nil
}

// Tick runs one reconciliation pass.  A crash takes priority over a drift
// check: if the process is found dead, drift handling is folded into
// crash recovery rather than run as a separate path.
func (e *Engine) Tick() {
	if e.recoverCrash() {
		return
	}
	e.checkDrift()
}

// recoverCrash checks process liveness and, if the process has exited,
// runs the crash recovery sequence.  It reports whether it consumed the
// tick.
func (e *Engine) recoverCrash() bool {
	if e.child == nil {
		return false
	}
	code, exited := e.child.Poll()
	if !exited {
		return false
	}

	e.setState(CrashRecovered)
	e.report(Warning, "Supervised process exited with code %d", code)

	// Best-effort update check before restarting; none of these
	// failures block the restart.
	e.report(Updated, "Checking for possible updates before restart...")
	local, lerr := e.source.LocalHead()
	if lerr != nil {
		e.report(Failure, "Could not open local repository during crash recovery.")
	} else if remote, rerr := e.remote.Head(); rerr != nil {
		e.report(Failure, "Failed to query remote SHA: %v", rerr)
	} else if local != "" && remote != "" && local != remote {
		e.report(Updated, "Update available: %s -> %s", ShortSha(local), ShortSha(remote))
		e.report(Warning, "Updating repository before restart...")
		if err := e.source.Remove(); err != nil {
			e.report(Failure, "Cleanup failed: %v", err)
		} else if err := e.source.EnsureClone(); err != nil {
			e.report(Failure, "Re-clone failed: %v", err)
		} else {
			e.report(Success, "Repository updated successfully.")
			e.setHeads(remote, remote)
		}
	} else {
		e.report(Updated, "No new commits detected.")
	}

	// Restart regardless of whether an update was found.  If it fails,
	// the dead handle is kept so the next tick retries this same path.
	if e.cfg.StartCmd == "" {
		e.report(Failure, "No start command configured - cannot restart.")
		return true
	}
	if err := e.startChild(); err != nil {
		e.report(Failure, "Failed to restart process: %v", err)
		return true
	}
	e.report(Success, "Process restarted after crash.")
	e.setState(Running)
	return true
}

// checkDrift compares the local checkout HEAD against the remote branch
// head and reloads the deployment when they diverge.
func (e *Engine) checkDrift() {
	local, err := e.source.LocalHead()
	if err != nil {
		e.report(Warning, "Local repo missing - retrying clone.")
		if err := e.source.EnsureClone(); err != nil {
			e.report(Failure, "Retry failed: %v", err)
		} else {
			e.report(Success, "Repository re-cloned successfully.")
		}
		return
	}

	remote, err := e.remote.Head()
	if err != nil {
		e.report(Failure, "Failed to query remote SHA: %v", err)
		return
	}

	if !e.takeForced() {
		// An empty hash on either side is never treated as changed.
		if local == "" || remote == "" {
			e.report(Warning, "Skipping (invalid SHAs)")
			return
		}
		if local == remote {
			e.setHeads(local, remote)
			e.report(Updated, "No changes detected.")
			return
		}
		e.report(Updated, "Change detected: %s -> %s", ShortSha(local), ShortSha(remote))
	}

	e.reload(remote)
}

// reload stops the process, replaces the checkout, and restarts.  Each
// step must complete before the next begins; a failed removal or clone
// aborts the reload for this tick, leaving repair to the next one.
func (e *Engine) reload(remote string) {
	e.setState(Reloading)

	if e.cfg.StopCmd != "" {
		e.report(Updated, "Executing stop command...")
		if err := e.runner.Run(e.cfg.StopCmd, e.source.Dir()); err != nil {
			e.report(Failure, "Stop command failed: %v", err)
		} else {
			e.report(Success, "Stop command completed.")
		}
		e.pause(time.Second)
	} else {
		e.report(Warning, "Killing supervised process...")
		if e.child != nil {
			e.child.KillAndWait()
		}
	}

	e.report(Warning, "Removing old repository...")
	if err := e.source.Remove(); err != nil {
		e.report(Failure, "Cleanup failed: %v", err)
		return
	}

	if err := e.source.EnsureClone(); err != nil {
		e.report(Failure, "Re-clone failed: %v", err)
		return
	}

	if e.cfg.StartCmd != "" {
		if err := e.startChild(); err != nil {
			e.report(Failure, "Failed to restart process: %v", err)
			return
		}
	}

	e.setHeads(remote, remote)
	e.setState(Running)
	e.report(Success, "Reloaded cleanly.")
}

// Shutdown runs the terminal sequence: kill and reap the current process.
// The checkout is deliberately left in place.
func (e *Engine) Shutdown() {
	e.setState(Draining)
	e.report(Warning, "Stopping supervised process...")
	e.mx.Lock()
	child := e.child
	e.child = nil
	e.mx.Unlock()
	if child != nil {
		child.KillAndWait()
	}
	e.setState(Stopped)
}

// ShortSha shortens a commit hash for display.
func ShortSha(sha string) string {
	if len(sha) >= 8 {
		return sha[:8]
	}
	return sha
}

// NewEngine allocates a reconciliation engine over the given collaborators.
func NewEngine(cfg *Config, source Source, remote Remote, runner Runner, rep Reporter) *Engine {
	return &Engine{
		cfg:    cfg,
		source: source,
		remote: remote,
		runner: runner,
		rep:    rep,
		pause:  time.Sleep,
		state:  Stopped,
		stamp:  time.Now(),
	}
}
