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

// Command gitvisor implements a client application that communicates with
// gitvisord.  It uses subcommands.
//
// The flags are
//
//	-a <address>	- select the daemon address, default is
//			  http://127.0.0.1:8321
//
// Subcommands are
//
//	status          - show the deployment status
//	log [<id>]      - show status records (newer than <id> if given)
//	reload          - force a reload of the deployment
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gitvisor/gitvisor/rest"
)

var addr string = "http://127.0.0.1:8321"

func usage() {
	log.Fatalf("Usage: %s [-a <address>] status|log|reload", os.Args[0])
}

func showStatus(s *rest.StatusInfo) {
	d := time.Since(s.TimeStamp)
	// for printing second resolution is sufficient
	d -= d % time.Second
	fmt.Printf("%-16s %s\n", "State:", s.State)
	fmt.Printf("%-16s %s\n", "Since:", d.String())
	if s.Pid >= 0 {
		fmt.Printf("%-16s %d\n", "PID:", s.Pid)
	}
	fmt.Printf("%-16s %d\n", "Starts:", s.Starts)
	if s.LocalHead != "" {
		fmt.Printf("%-16s %s\n", "Local head:", s.LocalHead)
	}
	if s.RemoteHead != "" {
		fmt.Printf("%-16s %s\n", "Remote head:", s.RemoteHead)
	}
}

func main() {
	flag.StringVar(&addr, "a", addr, "daemon address")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
	}

	client := rest.NewClient(addr)
	ctx := context.Background()

	switch args[0] {
	case "status":
		s, e := client.Status(ctx)
		if e != nil {
			log.Fatalf("Failed to get status: %v", e)
		}
		showStatus(s)
	case "log":
		var since int64
		if len(args) > 1 {
			n, e := strconv.ParseInt(args[1], 10, 64)
			if e != nil {
				usage()
			}
			since = n
		}
		info, e := client.Log(ctx, since)
		if e != nil {
			log.Fatalf("Failed to get log: %v", e)
		}
		for _, rec := range info.Records {
			fmt.Printf("%s %s: %s\n",
				rec.Time.Format(time.Stamp), rec.Severity, rec.Text)
		}
	case "reload":
		if e := client.Reload(ctx); e != nil {
			log.Fatalf("Failed to request reload: %v", e)
		}
		fmt.Println("Reload requested.")
	default:
		usage()
	}
}
