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

package repo

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gitvisor/gitvisor"
)

const defaultApiBase = "https://api.github.com"

// Branch resolves the current head commit of a branch through the GitHub
// branch-metadata endpoint.  Lookups deliberately carry no client timeout;
// the supervision loop accepts blocking for the full round-trip.
type Branch struct {
	account    string
	repository string
	branch     string
	token      string
	base       string
	client     *http.Client
}

// branchInfo is the subset of the API response we consume.
type branchInfo struct {
	Commit struct {
		Sha string `json:"sha"`
	} `json:"commit"`
}

// Head resolves the branch head.  Failures carry a SyncError kind:
// 401 is unauthorized, 404 is not-found, any other non-2xx status is an
// API failure, and transport errors are network failures.
func (b *Branch) Head() (string, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/branches/%s",
		b.base, b.account, b.repository, b.branch)
	req, e := http.NewRequest("GET", url, nil)
	if e != nil {
		return "", &gitvisor.SyncError{Kind: gitvisor.SyncApiFailure, Err: e}
	}
	req.Header.Set("User-Agent", "gitvisor")
	if b.token != "" {
		req.Header.Set("Authorization", "token "+b.token)
	}

	resp, e := b.client.Do(req)
	if e != nil {
		return "", &gitvisor.SyncError{Kind: gitvisor.SyncNetworkFailure, Err: e}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return "", &gitvisor.SyncError{
			Kind: gitvisor.SyncUnauthorized,
			Err:  errors.New("invalid or missing token"),
		}
	case resp.StatusCode == http.StatusNotFound:
		return "", &gitvisor.SyncError{
			Kind: gitvisor.SyncNotFound,
			Err:  errors.New("repository not found (check visibility and account)"),
		}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return "", &gitvisor.SyncError{
			Kind: gitvisor.SyncApiFailure,
			Err:  fmt.Errorf("API error: %s", resp.Status),
		}
	}

	info := &branchInfo{}
	if e := json.NewDecoder(resp.Body).Decode(info); e != nil {
		return "", &gitvisor.SyncError{Kind: gitvisor.SyncApiFailure, Err: e}
	}
	return info.Commit.Sha, nil
}

// NewBranch returns the remote head resolver for the configured branch.
func NewBranch(cfg *gitvisor.Config) *Branch {
	return &Branch{
		account:    cfg.Account,
		repository: cfg.Repository,
		branch:     cfg.Branch,
		token:      cfg.AuthToken(),
		base:       defaultApiBase,
		client:     &http.Client{},
	}
}
