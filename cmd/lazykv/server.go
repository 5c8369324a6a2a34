package main

import (
	"encoding/json"
	"io/ioutil"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sumimakito/oncegate"
	"go.uber.org/zap"
)

// server exposes a KV store that is opened lazily: the bbolt file is not
// touched until the first data request. The status endpoint reports whether
// the store was ever opened without triggering the open itself.
type server struct {
	logger *zap.SugaredLogger
	store  *oncegate.Lazy[*kvStore]
}

func newServer(logger *zap.SugaredLogger, dbPath string) *server {
	s := &server{logger: logger}
	s.store = oncegate.NewLazy(func() *kvStore {
		store, err := openStore(dbPath)
		if err != nil {
			logger.Fatalw("failed to open the store", "path", dbPath, "error", err)
		}
		logger.Infow("store opened", "path", dbPath)
		return store
	})
	return s
}

type statusResponse struct {
	Store  string `json:"store"`
	Opened bool   `json:"opened"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *server) writeJSON(rw http.ResponseWriter, statusCode int, v interface{}) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(statusCode)
	if err := json.NewEncoder(rw).Encode(v); err != nil {
		s.logger.Warnw("failed to write the response", "error", err)
	}
}

func (s *server) handleGet(rw http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	value, err := s.store.Get().Get(key)
	if err != nil {
		s.writeJSON(rw, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	if value == nil {
		rw.WriteHeader(http.StatusNotFound)
		return
	}
	rw.Write(value)
}

func (s *server) handlePut(rw http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	value, err := ioutil.ReadAll(r.Body)
	if err != nil {
		s.writeJSON(rw, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err := s.store.Get().Put(key, value); err != nil {
		s.writeJSON(rw, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	rw.WriteHeader(http.StatusNoContent)
}

func (s *server) handleDelete(rw http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if err := s.store.Get().Delete(key); err != nil {
		s.writeJSON(rw, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	rw.WriteHeader(http.StatusNoContent)
}

func (s *server) handleStatus(rw http.ResponseWriter, r *http.Request) {
	s.writeJSON(rw, http.StatusOK, statusResponse{
		Store:  s.store.Status().String(),
		Opened: s.store.Done(),
	})
}

func (s *server) router() *mux.Router {
	root := mux.NewRouter()
	v1 := root.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/kv/{key}", s.handleGet).Methods("GET")
	v1.HandleFunc("/kv/{key}", s.handlePut).Methods("PUT")
	v1.HandleFunc("/kv/{key}", s.handleDelete).Methods("DELETE")
	v1.HandleFunc("/status", s.handleStatus).Methods("GET")
	return root
}
