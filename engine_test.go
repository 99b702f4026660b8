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
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

type testReporter struct {
	t     *testing.T
	lines []string
}

func (r *testReporter) Report(sev Severity, format string, args ...interface{}) {
	line := fmt.Sprintf("%s: %s", sev, fmt.Sprintf(format, args...))
	r.lines = append(r.lines, line)
	if r.t != nil {
		r.t.Log(line)
	}
}

// testSource fakes the local checkout.  A successful clone adopts the
// configured cloneHead, the way a real clone lands on the remote head.
type testSource struct {
	steps     *[]string
	head      string
	headErr   error
	cloneHead string
	cloneErr  error
	removeErr error
	clones    int
	removes   int
}

func (s *testSource) EnsureClone() error {
	*s.steps = append(*s.steps, "clone")
	s.clones++
	if s.cloneErr != nil {
		return s.cloneErr
	}
	s.head = s.cloneHead
	s.headErr = nil
	return nil
}

func (s *testSource) LocalHead() (string, error) {
	if s.headErr != nil {
		return "", s.headErr
	}
	return s.head, nil
}

func (s *testSource) Remove() error {
	*s.steps = append(*s.steps, "remove")
	if s.removeErr != nil {
		return s.removeErr
	}
	s.removes++
	s.head = ""
	return nil
}

func (s *testSource) Dir() string {
	return "checkout"
}

type testRemote struct {
	head string
	err  error
}

func (r *testRemote) Head() (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return r.head, nil
}

type testHandle struct {
	steps *[]string
	pid   int
	code  int
	dead  bool
	kills int
}

func (h *testHandle) Pid() int {
	return h.pid
}

func (h *testHandle) Poll() (int, bool) {
	if h.dead {
		return h.code, true
	}
	return 0, false
}

func (h *testHandle) KillAndWait() {
	*h.steps = append(*h.steps, "kill")
	h.kills++
	h.dead = true
}

type testRunner struct {
	steps    *[]string
	startErr error
	stopErr  error
	started  []*testHandle
	stops    int
}

func (r *testRunner) Start(command, dir string) (Handle, error) {
	*r.steps = append(*r.steps, "start")
	if r.startErr != nil {
		return nil, &SpawnError{Command: command, Err: r.startErr}
	}
	h := &testHandle{steps: r.steps, pid: 1000 + len(r.started)}
	r.started = append(r.started, h)
	return h, nil
}

func (r *testRunner) Run(command, dir string) error {
	*r.steps = append(*r.steps, "stop")
	r.stops++
	return r.stopErr
}

type testRig struct {
	steps  []string
	src    *testSource
	rem    *testRemote
	run    *testRunner
	rep    *testReporter
	paused int
	eng    *Engine
}

func (rig *testRig) reset() {
	rig.steps = rig.steps[:0]
}

func newTestRig(t *testing.T, cfg *Config) *testRig {
	rig := &testRig{}
	rig.src = &testSource{steps: &rig.steps}
	rig.rem = &testRemote{}
	rig.run = &testRunner{steps: &rig.steps}
	rig.rep = &testReporter{t: t}
	rig.eng = NewEngine(cfg, rig.src, rig.rem, rig.run, rig.rep)
	rig.eng.pause = func(time.Duration) {
		rig.paused++
	}
	return rig
}

func testConfig() *Config {
	return &Config{
		Account:    "acme",
		Repository: "webapp",
		Branch:     "main",
		StartCmd:   "./run.sh",
	}
}

func TestNoDrift(t *testing.T) {
	Convey("Equal heads across many ticks cause no action", t, func() {
		rig := newTestRig(t, testConfig())
		rig.src.head = "aaaaaaaa"
		rig.src.cloneHead = "aaaaaaaa"
		rig.rem.head = "aaaaaaaa"
		So(rig.eng.StartProcess(), ShouldBeNil)
		rig.reset()

		for i := 0; i < 5; i++ {
			rig.eng.Tick()
		}
		So(rig.steps, ShouldBeEmpty)
		So(rig.src.clones, ShouldEqual, 0)
		So(rig.src.removes, ShouldEqual, 0)
		So(len(rig.run.started), ShouldEqual, 1)
		So(rig.eng.GetInfo().State, ShouldEqual, "running")
	})
}

func TestInconclusiveTicks(t *testing.T) {
	Convey("An empty hash on either side never triggers a reload", t, func() {
		rig := newTestRig(t, testConfig())
		So(rig.eng.StartProcess(), ShouldBeNil)
		rig.reset()

		Convey("Empty local hash", func() {
			rig.src.head = ""
			rig.rem.head = "bbbbbbbb"
			rig.eng.Tick()
			So(rig.steps, ShouldBeEmpty)
		})

		Convey("Empty remote hash", func() {
			rig.src.head = "aaaaaaaa"
			rig.rem.head = ""
			rig.eng.Tick()
			So(rig.steps, ShouldBeEmpty)
		})

		Convey("Both empty", func() {
			rig.src.head = ""
			rig.rem.head = ""
			rig.eng.Tick()
			So(rig.steps, ShouldBeEmpty)
		})
	})
}

func TestDriftReload(t *testing.T) {
	Convey("Distinct non-empty heads trigger exactly one reload", t, func() {
		rig := newTestRig(t, testConfig())
		rig.src.head = "aaaaaaaa"
		rig.src.cloneHead = "bbbbbbbb"
		rig.rem.head = "bbbbbbbb"
		So(rig.eng.StartProcess(), ShouldBeNil)
		rig.reset()

		rig.eng.Tick()
		So(rig.steps, ShouldResemble, []string{"kill", "remove", "clone", "start"})
		So(rig.eng.GetInfo().State, ShouldEqual, "running")
		So(len(rig.run.started), ShouldEqual, 2)

		Convey("Subsequent ticks see the new head and do nothing", func() {
			rig.reset()
			rig.eng.Tick()
			rig.eng.Tick()
			So(rig.steps, ShouldBeEmpty)
			So(rig.src.clones, ShouldEqual, 1)
		})
	})
}

func TestReloadWithStopCommand(t *testing.T) {
	Convey("A configured stop command runs to completion before removal", t, func() {
		cfg := testConfig()
		cfg.StopCmd = "./stop.sh"
		rig := newTestRig(t, cfg)
		rig.src.head = "aaaaaaaa"
		rig.src.cloneHead = "bbbbbbbb"
		rig.rem.head = "bbbbbbbb"
		So(rig.eng.StartProcess(), ShouldBeNil)
		rig.reset()

		rig.eng.Tick()
		So(rig.steps, ShouldResemble, []string{"stop", "remove", "clone", "start"})
		So(rig.paused, ShouldEqual, 1)
		So(rig.run.started[0].kills, ShouldEqual, 0)
	})
}

func TestReloadAborts(t *testing.T) {
	Convey("Reload aborts leave repair to the next tick", t, func() {
		rig := newTestRig(t, testConfig())
		rig.src.head = "aaaaaaaa"
		rig.src.cloneHead = "bbbbbbbb"
		rig.rem.head = "bbbbbbbb"
		So(rig.eng.StartProcess(), ShouldBeNil)
		rig.reset()

		Convey("Failed removal aborts before the clone", func() {
			rig.src.removeErr = &CleanupError{Path: "checkout", Err: errors.New("busy")}
			rig.eng.Tick()
			So(rig.steps, ShouldResemble, []string{"kill", "remove"})
			So(rig.src.clones, ShouldEqual, 0)
			So(len(rig.run.started), ShouldEqual, 1)
			So(rig.eng.GetInfo().State, ShouldEqual, "reloading")
		})

		Convey("Failed clone aborts before the restart", func() {
			rig.src.cloneErr = &SyncError{Kind: SyncNetworkFailure, Err: errors.New("timeout")}
			rig.eng.Tick()
			So(rig.steps, ShouldResemble, []string{"kill", "remove", "clone"})
			So(len(rig.run.started), ShouldEqual, 1)
		})
	})
}

func TestMissingCheckout(t *testing.T) {
	Convey("An unopenable checkout is re-cloned and the tick ends there", t, func() {
		rig := newTestRig(t, testConfig())
		rig.src.headErr = &SyncError{Kind: SyncNotFound, Err: errors.New("no repository")}
		rig.src.cloneHead = "bbbbbbbb"
		rig.rem.head = "bbbbbbbb"
		So(rig.eng.StartProcess(), ShouldBeNil)
		rig.reset()

		rig.eng.Tick()
		So(rig.steps, ShouldResemble, []string{"clone"})
		So(rig.run.started[0].kills, ShouldEqual, 0)

		Convey("The next tick compares heads again", func() {
			rig.reset()
			rig.eng.Tick()
			So(rig.steps, ShouldBeEmpty)
		})
	})
}

func TestRemoteFailure(t *testing.T) {
	Convey("A failed remote lookup skips the tick", t, func() {
		rig := newTestRig(t, testConfig())
		rig.src.head = "aaaaaaaa"
		rig.rem.err = &SyncError{Kind: SyncApiFailure, Err: errors.New("HTTP 500")}
		So(rig.eng.StartProcess(), ShouldBeNil)
		rig.reset()

		rig.eng.Tick()
		So(rig.steps, ShouldBeEmpty)
	})
}

func TestCrashNoUpdate(t *testing.T) {
	Convey("A crash with equal heads restarts once without a re-clone", t, func() {
		rig := newTestRig(t, testConfig())
		rig.src.head = "aaaaaaaa"
		rig.rem.head = "aaaaaaaa"
		So(rig.eng.StartProcess(), ShouldBeNil)
		rig.run.started[0].dead = true
		rig.run.started[0].code = 137
		rig.reset()

		rig.eng.Tick()
		So(rig.steps, ShouldResemble, []string{"start"})
		So(rig.src.clones, ShouldEqual, 0)
		So(rig.src.removes, ShouldEqual, 0)
		So(len(rig.run.started), ShouldEqual, 2)
		So(rig.eng.GetInfo().State, ShouldEqual, "running")
	})
}

func TestCrashWithUpdate(t *testing.T) {
	Convey("A crash with drifted heads re-clones and restarts exactly once", t, func() {
		rig := newTestRig(t, testConfig())
		rig.src.head = "aaaaaaaa"
		rig.src.cloneHead = "bbbbbbbb"
		rig.rem.head = "bbbbbbbb"
		So(rig.eng.StartProcess(), ShouldBeNil)
		rig.run.started[0].dead = true
		rig.run.started[0].code = 1
		rig.reset()

		rig.eng.Tick()
		So(rig.steps, ShouldResemble, []string{"remove", "clone", "start"})
		So(len(rig.run.started), ShouldEqual, 2)
		So(rig.eng.GetInfo().State, ShouldEqual, "running")

		Convey("And only once", func() {
			rig.reset()
			rig.eng.Tick()
			So(rig.steps, ShouldBeEmpty)
		})
	})
}

func TestCrashRecloneFailure(t *testing.T) {
	Convey("A failed re-clone during crash recovery still restarts", t, func() {
		rig := newTestRig(t, testConfig())
		rig.src.head = "aaaaaaaa"
		rig.rem.head = "bbbbbbbb"
		rig.src.cloneErr = &SyncError{Kind: SyncNetworkFailure, Err: errors.New("timeout")}
		So(rig.eng.StartProcess(), ShouldBeNil)
		rig.run.started[0].dead = true
		rig.reset()

		rig.eng.Tick()
		So(rig.steps, ShouldResemble, []string{"remove", "clone", "start"})
		So(len(rig.run.started), ShouldEqual, 2)
	})
}

func TestCrashNoStartCommand(t *testing.T) {
	Convey("Crash recovery without a start command leaves the process dead", t, func() {
		cfg := testConfig()
		cfg.StartCmd = ""
		rig := newTestRig(t, cfg)
		rig.src.head = "aaaaaaaa"
		rig.rem.head = "aaaaaaaa"
		rig.eng.child = &testHandle{steps: &rig.steps, pid: 42, code: 2, dead: true}
		rig.eng.setState(Running)
		rig.reset()

		rig.eng.Tick()
		So(rig.steps, ShouldBeEmpty)
		So(rig.eng.GetInfo().State, ShouldEqual, "crash-recovered")

		Convey("And every later tick retries the same path", func() {
			rig.eng.Tick()
			rig.eng.Tick()
			So(rig.steps, ShouldBeEmpty)
			So(len(rig.run.started), ShouldEqual, 0)
			So(rig.eng.GetInfo().State, ShouldEqual, "crash-recovered")
		})
	})
}

func TestCrashRestartFailure(t *testing.T) {
	Convey("A failed restart is retried on the next tick", t, func() {
		rig := newTestRig(t, testConfig())
		rig.src.head = "aaaaaaaa"
		rig.rem.head = "aaaaaaaa"
		So(rig.eng.StartProcess(), ShouldBeNil)
		rig.run.started[0].dead = true
		rig.run.startErr = errors.New("fork failed")
		rig.reset()

		rig.eng.Tick()
		So(rig.steps, ShouldResemble, []string{"start"})
		So(rig.eng.GetInfo().State, ShouldEqual, "crash-recovered")

		Convey("Once starting works again, the process comes back", func() {
			rig.run.startErr = nil
			rig.reset()
			rig.eng.Tick()
			So(rig.steps, ShouldResemble, []string{"start"})
			So(rig.eng.GetInfo().State, ShouldEqual, "running")
		})
	})
}

func TestForceReload(t *testing.T) {
	Convey("A forced reload runs even with equal heads", t, func() {
		rig := newTestRig(t, testConfig())
		rig.src.head = "aaaaaaaa"
		rig.src.cloneHead = "aaaaaaaa"
		rig.rem.head = "aaaaaaaa"
		So(rig.eng.StartProcess(), ShouldBeNil)
		rig.reset()

		rig.eng.ForceReload()
		rig.eng.Tick()
		So(rig.steps, ShouldResemble, []string{"kill", "remove", "clone", "start"})

		Convey("The request does not stick", func() {
			rig.reset()
			rig.eng.Tick()
			So(rig.steps, ShouldBeEmpty)
		})
	})
}

func TestShortSha(t *testing.T) {
	Convey("Commit hashes shorten for display", t, func() {
		So(ShortSha("0123456789abcdef"), ShouldEqual, "01234567")
		So(ShortSha("abc"), ShouldEqual, "abc")
		So(ShortSha(""), ShouldEqual, "")
	})
}
