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

// Package repo implements the repository collaborators of the supervision
// loop: the local checkout (on go-git) and the remote branch-head lookup
// (on the GitHub API).
package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/gitvisor/gitvisor"
)

// Checkout manages the local clone of the tracked repository.  The
// checkout lives in its own subdirectory under the data root, and is only
// ever replaced wholesale: directories are removed and re-cloned, never
// merged or patched in place.
type Checkout struct {
	account    string
	repository string
	branch     string
	token      string
	dir        string
	url        string
}

// Dir returns the path of the local checkout.
func (c *Checkout) Dir() string {
	return c.dir
}

func (c *Checkout) cloneURL() string {
	if c.url != "" {
		return c.url
	}
	return fmt.Sprintf("https://github.com/%s/%s.git", c.account, c.repository)
}

// EnsureClone removes any pre-existing checkout and clones the configured
// branch fresh.  If the clone itself fails, the partial directory is
// removed so that no partially-cloned state is left in place.
func (c *Checkout) EnsureClone() error {
	if _, e := os.Stat(c.dir); e == nil {
		if e := os.RemoveAll(c.dir); e != nil {
			return &gitvisor.CleanupError{Path: c.dir, Err: e}
		}
	}
	if e := os.MkdirAll(filepath.Dir(c.dir), 0755); e != nil {
		return &gitvisor.CleanupError{Path: filepath.Dir(c.dir), Err: e}
	}

	opts := &git.CloneOptions{
		URL:           c.cloneURL(),
		ReferenceName: plumbing.NewBranchReferenceName(c.branch),
		SingleBranch:  true,
	}
	if c.token != "" {
		// GitHub accepts a token as a basic-auth password with any
		// non-empty user name.
		opts.Auth = &githttp.BasicAuth{Username: "git", Password: c.token}
	}

	if _, e := git.PlainClone(c.dir, false, opts); e != nil {
		os.RemoveAll(c.dir)
		return &gitvisor.SyncError{Kind: cloneKind(e), Err: e}
	}
	return nil
}

func cloneKind(e error) gitvisor.SyncKind {
	switch {
	case errors.Is(e, transport.ErrAuthenticationRequired),
		errors.Is(e, transport.ErrAuthorizationFailed):
		return gitvisor.SyncUnauthorized
	case errors.Is(e, transport.ErrRepositoryNotFound):
		return gitvisor.SyncNotFound
	default:
		return gitvisor.SyncNetworkFailure
	}
}

// LocalHead reads the HEAD commit of the checkout.  A missing or invalid
// checkout is an error; a checkout whose HEAD cannot be resolved yields an
// empty hash, which the engine treats as inconclusive.
func (c *Checkout) LocalHead() (string, error) {
	r, e := git.PlainOpen(c.dir)
	if e != nil {
		return "", &gitvisor.SyncError{Kind: gitvisor.SyncNotFound, Err: e}
	}
	head, e := r.Head()
	if e != nil {
		return "", nil
	}
	return head.Hash().String(), nil
}

// Remove deletes the checkout directory.
func (c *Checkout) Remove() error {
	if e := os.RemoveAll(c.dir); e != nil {
		return &gitvisor.CleanupError{Path: c.dir, Err: e}
	}
	return nil
}

// NewCheckout returns the checkout manager for the configured repository.
func NewCheckout(cfg *gitvisor.Config) *Checkout {
	return &Checkout{
		account:    cfg.Account,
		repository: cfg.Repository,
		branch:     cfg.Branch,
		token:      cfg.AuthToken(),
		dir:        cfg.RepoDir(),
	}
}
