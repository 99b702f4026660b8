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
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
)

// Client speaks to the control API of a running supervisor daemon.
type Client struct {
	base   string
	client *http.Client
}

func (c *Client) get(ctx context.Context, url string, v interface{}) error {
	req, e := http.NewRequestWithContext(ctx, "GET", url, nil)
	if e != nil {
		return e
	}
	return c.do(req, v)
}

func (c *Client) post(ctx context.Context, url string) error {
	req, e := http.NewRequestWithContext(ctx, "POST", url, nil)
	if e != nil {
		return e
	}
	return c.do(req, nil)
}

func (c *Client) do(req *http.Request, v interface{}) error {
	resp, e := c.client.Do(req)
	if e != nil {
		return e
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		e := &Error{}
		if b, re := io.ReadAll(resp.Body); re == nil && json.Unmarshal(b, e) == nil && e.Message != "" {
			e.Code = resp.StatusCode
			return e
		}
		return &Error{resp.StatusCode, resp.Status}
	}
	if v == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// Status fetches the current deployment status.
func (c *Client) Status(ctx context.Context) (*StatusInfo, error) {
	info := &StatusInfo{}
	if e := c.get(ctx, c.base+"/status", info); e != nil {
		return nil, e
	}
	return info, nil
}

// Log fetches status records newer than since.  Pass zero for everything
// retained; pass the returned ID on the next call to poll incrementally.
func (c *Client) Log(ctx context.Context, since int64) (*LogInfo, error) {
	url := c.base + "/log"
	if since != 0 {
		url += "?since=" + strconv.FormatInt(since, 10)
	}
	info := &LogInfo{}
	if e := c.get(ctx, url, info); e != nil {
		return nil, e
	}
	return info, nil
}

// Reload requests a forced reload of the deployment.
func (c *Client) Reload(ctx context.Context) error {
	return c.post(ctx, c.base+"/reload")
}

// NewClient returns a client for the control API rooted at base, such as
// "http://127.0.0.1:8321".
func NewClient(base string) *Client {
	return &Client{base: base, client: &http.Client{}}
}
