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

// Command gitvisord supervises a single deployment: it keeps a local
// checkout of the configured branch in sync with the remote, runs the
// configured start command against it, restarts the process when it
// crashes, and reloads it when the branch advances.
//
// The flags are
//
//	-c <path>	- configuration file, default gitvisor.json
//
// Everything else comes from the configuration file.  When a listen
// address is configured, the control API is served there for the gitvisor
// client.
package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gitvisor/gitvisor"
	"github.com/gitvisor/gitvisor/repo"
	"github.com/gitvisor/gitvisor/rest"
)

var conf string = "gitvisor.json"

func main() {
	flag.StringVar(&conf, "c", conf, "configuration file")
	flag.Parse()

	cfg, e := gitvisor.LoadConfig(conf)
	if e != nil {
		log.Fatalf("FAILURE: %v", e)
	}

	logger := log.New(os.Stdout, "", log.LstdFlags)
	rep := gitvisor.NewMultiReporter()
	rep.AddReporter(gitvisor.NewLogReporter(logger))
	rec := gitvisor.NewLog()
	rep.AddReporter(rec)

	rep.Report(gitvisor.Success, "Loaded config from %s", conf)
	rep.Report(gitvisor.Updated, "Starting gitvisor supervisor")

	eng := gitvisor.NewEngine(cfg,
		repo.NewCheckout(cfg),
		repo.NewBranch(cfg),
		gitvisor.NewProcessRunner(logger),
		rep)
	sup := gitvisor.NewSupervisor(eng, cfg.PollInterval())

	if cfg.Listen != "" {
		go func() {
			log.Fatal(http.ListenAndServe(cfg.Listen,
				rest.NewHandler(eng, rec)))
		}()
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		<-sigs
		rep.Report(gitvisor.Warning, "Signal received, stopping...")
		sup.Stop()
	}()

	if e := sup.Run(); e != nil {
		log.Fatalf("FAILURE: %v", e)
	}
	rep.Report(gitvisor.Success, "Gitvisor exited cleanly.")
}
