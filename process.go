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
	"bufio"
	"io"
	"log"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// Handle is the single supervised child process.  At most one live Handle
// exists at any time; the engine discards it once the process has been
// reaped.
type Handle interface {
	// Pid returns the operating system process ID.
	Pid() int

	// Poll is a non-blocking liveness check.  It reports the exit code
	// and true once the process has exited and been reaped.
	Poll() (int, bool)

	// KillAndWait forcefully terminates the process and blocks until it
	// is reaped.  Termination is best-effort; errors are swallowed.
	KillAndWait()
}

// Runner creates processes on behalf of the engine: the long-lived
// supervised process, and short synchronous commands such as the stop
// command.
type Runner interface {
	// Start spawns the command as a child with the given working
	// directory and returns its handle.
	Start(command, dir string) (Handle, error)

	// Run executes the command synchronously, blocking until it exits.
	// A non-nil error indicates the command could not run or exited
	// non-zero.
	Run(command, dir string) error
}

// process wraps an exec.Cmd with asynchronous reaping, so that liveness
// can be checked without blocking.
type process struct {
	cmd    *exec.Cmd
	code   int
	exited chan struct{}
	lock   sync.Mutex
}

func (p *process) Pid() int {
	if p.cmd.Process == nil {
		return -1
	}
	return p.cmd.Process.Pid
}

func (p *process) reap() {
	p.cmd.Wait()
	p.lock.Lock()
	if st := p.cmd.ProcessState; st != nil {
		p.code = st.ExitCode()
	}
	p.lock.Unlock()
	close(p.exited)
}

func (p *process) Poll() (int, bool) {
	select {
	case <-p.exited:
		p.lock.Lock()
		code := p.code
		p.lock.Unlock()
		return code, true
	default:
		return 0, false
	}
}

func (p *process) KillAndWait() {
	if proc := p.cmd.Process; proc != nil {
		// The process may already be gone; nothing useful to do on
		// failure here.
		proc.Kill()
	}
	<-p.exited
}

// ProcessRunner runs commands through a shell, with the local checkout as
// the working directory.  Child stdout and stderr are captured line by
// line into the logger.
type ProcessRunner struct {
	logger *log.Logger
}

func (r *ProcessRunner) doLog(rd io.ReadCloser, prefix string) {
	// Gather stdout/stderr in chunks of lines
	reader := bufio.NewReader(rd)
	for {
		line, err := reader.ReadString('\n')
		if len(line) != 0 {
			r.logger.Print(prefix, strings.Trim(line, "\n"))
		}
		if err != nil {
			return
		}
	}
}

func (r *ProcessRunner) command(command, dir string) *exec.Cmd {
	cmd := exec.Command("sh", "-c", command)
	cmd.Dir = dir
	if stdout, e := cmd.StdoutPipe(); e != nil {
		r.logger.Printf("Failed to capture stdout: %v", e)
	} else {
		go r.doLog(stdout, "stdout> ")
	}
	if stderr, e := cmd.StderrPipe(); e != nil {
		r.logger.Printf("Failed to capture stderr: %v", e)
	} else {
		go r.doLog(stderr, "stderr> ")
	}
	return cmd
}

func (r *ProcessRunner) Start(command, dir string) (Handle, error) {
	cmd := r.command(command, dir)
	if e := cmd.Start(); e != nil {
		return nil, &SpawnError{Command: command, Err: e}
	}
	p := &process{cmd: cmd, exited: make(chan struct{})}
	go p.reap()
	return p, nil
}

func (r *ProcessRunner) Run(command, dir string) error {
	cmd := r.command(command, dir)
	if e := cmd.Start(); e != nil {
		return &SpawnError{Command: command, Err: e}
	}
	return cmd.Wait()
}

// NewProcessRunner returns a Runner backed by real operating system
// processes.  If logger is nil, child output goes to stderr.
func NewProcessRunner(logger *log.Logger) *ProcessRunner {
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	return &ProcessRunner{logger: logger}
}
