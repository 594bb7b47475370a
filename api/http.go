// Package api exposes the resource manager over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/c360studio/semres/export"
	"github.com/c360studio/semres/resource"
	"github.com/c360studio/semres/variant"
	"github.com/c360studio/semres/vocabulary/nao"
)

// maxRequestBodySize limits POST body sizes.
const maxRequestBodySize = 1 << 20 // 1 MB

// Server serves the resource API.
type Server struct {
	m      *resource.Manager
	logger *slog.Logger
}

// NewServer creates a server for m.
func NewServer(m *resource.Manager, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{m: m, logger: logger}
}

// Router returns the routes:
//
//	GET    /resources?id=&type=
//	DELETE /resources?id=
//	GET    /resources/search?type=
//	POST   /resources/properties?id=
//	DELETE /resources/properties?id=&predicate=
//	POST   /resources/tags?id=
//	POST   /resources/sync?id=
//	GET    /export?format=
//	GET    /health
//	GET    /metrics
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/resources", s.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/resources", s.handleRemove).Methods(http.MethodDelete)
	r.HandleFunc("/resources/search", s.handleSearch).Methods(http.MethodGet)
	r.HandleFunc("/resources/properties", s.handleSetProperty).Methods(http.MethodPost)
	r.HandleFunc("/resources/properties", s.handleRemoveProperty).Methods(http.MethodDelete)
	r.HandleFunc("/resources/tags", s.handleSetTags).Methods(http.MethodPost)
	r.HandleFunc("/resources/sync", s.handleSync).Methods(http.MethodPost)
	r.HandleFunc("/export", s.handleExport).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// ResourceView is the JSON form of a resource.
type ResourceView struct {
	URI        string                     `json:"uri"`
	Kickoff    string                     `json:"kickoff,omitempty"`
	Type       string                     `json:"type"`
	Types      []string                   `json:"types"`
	Modified   bool                       `json:"modified"`
	Properties map[string]variant.Variant `json:"properties"`
}

// PropertyRequest is the body of POST /resources/properties.
type PropertyRequest struct {
	Predicate string          `json:"predicate"`
	Value     variant.Variant `json:"value"`
	Append    bool            `json:"append,omitempty"`
}

// TagsRequest is the body of POST /resources/tags.
type TagsRequest struct {
	Tags []string `json:"tags"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// handleGet resolves the resource and returns its merged state.
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	res, ok := s.open(w, r)
	if !ok {
		return
	}
	defer res.Release()

	view, err := s.view(r, res)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	res, ok := s.open(w, r)
	if !ok {
		return
	}
	defer res.Release()

	if err := res.Remove(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	typ := r.URL.Query().Get("type")
	if typ == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "type is required"})
		return
	}

	found, err := s.m.AllResourcesOfType(r.Context(), typ)
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer func() {
		for _, res := range found {
			res.Release()
		}
	}()

	uris := make([]string, 0, len(found))
	for _, res := range found {
		uri, err := res.URI(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		uris = append(uris, uri)
	}
	sort.Strings(uris)
	writeJSON(w, http.StatusOK, map[string][]string{"uris": uris})
}

func (s *Server) handleSetProperty(w http.ResponseWriter, r *http.Request) {
	var req PropertyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Predicate == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "predicate is required"})
		return
	}

	res, ok := s.open(w, r)
	if !ok {
		return
	}
	defer res.Release()

	predicate := nao.IRIForPredicate(req.Predicate)
	var err error
	if req.Append {
		err = res.AddProperty(r.Context(), predicate, req.Value)
	} else {
		err = res.SetProperty(predicate, req.Value)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.written(w, r, res)
}

func (s *Server) handleRemoveProperty(w http.ResponseWriter, r *http.Request) {
	predicate := r.URL.Query().Get("predicate")
	if predicate == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "predicate is required"})
		return
	}

	res, ok := s.open(w, r)
	if !ok {
		return
	}
	defer res.Release()

	if err := res.RemoveProperty(nao.IRIForPredicate(predicate)); err != nil {
		s.writeError(w, err)
		return
	}
	s.written(w, r, res)
}

func (s *Server) handleSetTags(w http.ResponseWriter, r *http.Request) {
	var req TagsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, ok := s.open(w, r)
	if !ok {
		return
	}
	defer res.Release()

	if err := res.SetTags(r.Context(), req.Tags); err != nil {
		s.writeError(w, err)
		return
	}
	s.written(w, r, res)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	res, ok := s.open(w, r)
	if !ok {
		return
	}
	defer res.Release()

	if err := res.Sync(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	view, err := s.view(r, res)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleExport flushes pending edits and serialises the resource graph.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("format")
	if name == "" {
		name = string(export.FormatTurtle)
	}
	format, err := export.ParseFormat(name)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	if err := s.m.Sync(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	exporter, err := export.FromStore(r.Context(), s.m.Store(), s.m.Graph())
	if err != nil {
		s.writeError(w, errors.Join(resource.ErrCommunication, err))
		return
	}
	out, err := exporter.Export(format)
	if err != nil {
		s.writeError(w, err)
		return
	}

	info, _ := export.GetFormatInfo(format)
	w.Header().Set("Content-Type", info.MIMEType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(out)); err != nil {
		s.logger.Debug("Failed to write export", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"cache":  s.m.Stats(),
	})
}

// open returns a handle for the id query parameter.
func (s *Server) open(w http.ResponseWriter, r *http.Request) (*resource.Resource, bool) {
	q := r.URL.Query()
	id := q.Get("id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "id is required"})
		return nil, false
	}
	return s.m.Resource(id, q.Get("type")), true
}

// written finishes a mutating request. Without auto-sync the edit is written
// immediately, since releasing the handle would drop it.
func (s *Server) written(w http.ResponseWriter, r *http.Request, res *resource.Resource) {
	if !s.m.AutoSync() {
		if err := res.Sync(r.Context()); err != nil {
			s.writeError(w, err)
			return
		}
	}
	view, err := s.view(r, res)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) view(r *http.Request, res *resource.Resource) (*ResourceView, error) {
	ctx := r.Context()
	uri, err := res.URI(ctx)
	if err != nil {
		return nil, err
	}
	types, err := res.Types(ctx)
	if err != nil {
		return nil, err
	}
	props, err := res.Properties(ctx)
	if err != nil {
		return nil, err
	}
	return &ResourceView{
		URI:        uri,
		Kickoff:    res.KickoffURIOrID(),
		Type:       res.Type(),
		Types:      types,
		Modified:   res.Modified(),
		Properties: props,
	}, nil
}

// writeError maps resource errors to status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, resource.ErrCommunication):
		status = http.StatusBadGateway
	case errors.Is(err, resource.ErrInvalidType):
		status = http.StatusConflict
	case errors.Is(err, variant.ErrKindMismatch), errors.Is(err, resource.ErrRatingRange):
		status = http.StatusBadRequest
	}
	if status >= http.StatusInternalServerError {
		s.logger.Warn("Request failed", "status", status, "error", err)
	}
	resp := errorResponse{Error: err.Error()}
	if status == http.StatusBadGateway || status == http.StatusConflict {
		resp.Code = resource.CodeOf(err).String()
	}
	writeJSON(w, status, resp)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Response is already partially written if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}
