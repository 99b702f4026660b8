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
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultInterval = 60 * time.Second
	DefaultDataDir  = ".data"
)

// Config describes a single supervised deployment: the tracked repository
// and the commands used to run the checkout.  It is immutable once loaded.
type Config struct {
	Account    string `json:"account"`
	Repository string `json:"repository"`
	Branch     string `json:"branch"`
	Token      string `json:"token"`
	Interval   int    `json:"interval"`
	StartCmd   string `json:"start-command"`
	StopCmd    string `json:"stop-command"`
	DataDir    string `json:"data-dir"`
	Listen     string `json:"listen"`
}

// AuthToken returns the access token, or empty if none was configured.
// Blank tokens are treated as absent.
func (c *Config) AuthToken() string {
	return strings.TrimSpace(c.Token)
}

// PollInterval returns the tick interval as a duration.
func (c *Config) PollInterval() time.Duration {
	if c.Interval <= 0 {
		return DefaultInterval
	}
	return time.Duration(c.Interval) * time.Second
}

// RepoDir returns the path of the local checkout.  Checkouts live one
// directory per repository name under the data root.
func (c *Config) RepoDir() string {
	dir := c.DataDir
	if dir == "" {
		dir = DefaultDataDir
	}
	return filepath.Join(dir, c.Repository)
}

func (c *Config) validate() error {
	for _, f := range []struct {
		name, value string
	}{
		{"account", c.Account},
		{"repository", c.Repository},
		{"branch", c.Branch},
	} {
		if f.value == "" {
			return &ConfigError{fmt.Errorf("%w: %s", ErrMissingField, f.name)}
		}
	}
	return nil
}

// NewConfigFromJson decodes and validates a configuration.
func NewConfigFromJson(r io.Reader) (*Config, error) {
	dec := json.NewDecoder(r)
	c := &Config{}
	if e := dec.Decode(c); e != nil {
		return nil, &ConfigError{e}
	}
	if e := c.validate(); e != nil {
		return nil, e
	}
	return c, nil
}

// LoadConfig reads a configuration file.  Any failure here is fatal to
// startup; nothing can run without a valid configuration.
func LoadConfig(path string) (*Config, error) {
	f, e := os.Open(path)
	if e != nil {
		return nil, &ConfigError{e}
	}
	defer f.Close()
	return NewConfigFromJson(f)
}
