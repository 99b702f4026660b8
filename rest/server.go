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

// Package rest exposes the supervisor over a small HTTP control surface:
// a status snapshot, the recent status records, and a forced reload.
package rest

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/gitvisor/gitvisor"
)

// Handler wraps an Engine and its record log, adding http.Handler
// functionality.
type Handler struct {
	eng *gitvisor.Engine
	log *gitvisor.Log
	r   *mux.Router
}

func (h *Handler) internalError(w http.ResponseWriter, e error) {
	http.Error(w, e.Error(), http.StatusInternalServerError)
}

func (h *Handler) writeJson(w http.ResponseWriter, v interface{}) {
	if b, e := json.Marshal(v); e != nil {
		h.internalError(w, e)
	} else {
		w.Header().Set("Content-Type", mimeJson)
		w.Write(b)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, e *Error) {
	if b, err := json.Marshal(e); err != nil {
		h.internalError(w, err)
	} else {
		w.Header().Set("Content-Type", mimeJson)
		w.WriteHeader(e.Code)
		w.Write(b)
	}
}

func (h *Handler) getStatus(w http.ResponseWriter, r *http.Request) {
	info := h.eng.GetInfo()
	h.writeJson(w, &StatusInfo{
		State:      info.State,
		Pid:        info.Pid,
		Running:    info.Running,
		LocalHead:  info.LocalHead,
		RemoteHead: info.RemoteHead,
		Starts:     info.Starts,
		TimeStamp:  info.TimeStamp,
	})
}

func (h *Handler) getLog(w http.ResponseWriter, r *http.Request) {
	var since int64
	if v := r.URL.Query().Get("since"); v != "" {
		n, e := strconv.ParseInt(v, 10, 64)
		if e != nil {
			h.writeError(w, &Error{http.StatusBadRequest, "Bad since value"})
			return
		}
		since = n
	}
	recs, id := h.log.GetRecords(since)
	w.Header().Set("Etag", strconv.FormatInt(id, 10))
	h.writeJson(w, &LogInfo{Id: id, Records: recs})
}

func (h *Handler) postReload(w http.ResponseWriter, r *http.Request) {
	h.eng.ForceReload()
	h.writeJson(w, ok)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	h.r.ServeHTTP(w, req)
}

// NewHandler returns the control API handler over the given engine and
// record log.
func NewHandler(eng *gitvisor.Engine, log *gitvisor.Log) *Handler {
	r := mux.NewRouter()
	h := &Handler{eng: eng, log: log, r: r}
	r.HandleFunc("/status", h.getStatus).Methods("GET")
	r.HandleFunc("/log", h.getLog).Methods("GET")
	r.HandleFunc("/reload", h.postReload).Methods("POST")
	return h
}
