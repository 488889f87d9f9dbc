package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/hyperjump/docuflow/internal/audit"
	"github.com/hyperjump/docuflow/internal/errs"
	"github.com/hyperjump/docuflow/internal/models"
)

type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

type classifyRequest struct {
	Text string `json:"text"`
}

// decodeJSON reads at most limit bytes of JSON into v. On failure it writes the
// error response and returns false.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any, limit int64) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.respondError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", limit), "validation")
			return false
		}
		s.respondError(w, http.StatusBadRequest, "invalid request body", "validation")
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.status == nil {
		s.respondError(w, http.StatusNotImplemented, "status not available", "")
		return
	}
	st, err := s.status(r.Context())
	if err != nil {
		s.logger.Error("status failed", zap.Error(err))
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, st)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !s.decodeJSON(w, r, &req, maxRequestBytes) {
		return
	}
	s.logger.Debug("search request", zap.String("query", req.Query), zap.Int("top_k", req.TopK))
	res, err := s.svc.Search(r.Context(), s.role(r), req.Query, req.TopK)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if !s.decodeJSON(w, r, &req, maxRequestBytes) {
		return
	}
	if role := r.Header.Get(RoleHeader); role != "" || req.Role == "" {
		req.Role = s.role(r)
	}
	s.logger.Debug("query request", zap.String("role", req.Role), zap.String("query", req.Query))
	res, err := s.svc.Run(r.Context(), req)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if !s.decodeJSON(w, r, &req, maxRequestBytes) {
		return
	}
	c, err := s.svc.Classify(r.Context(), s.role(r), req.Text)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, c)
}

func (s *Server) handleAddDocument(w http.ResponseWriter, r *http.Request) {
	var input models.DocumentInput
	if !s.decodeJSON(w, r, &input, maxUploadBytes) {
		return
	}
	s.logger.Debug("add document request", zap.String("source_file", input.SourceFile))
	frag, err := s.svc.AddDocument(r.Context(), s.role(r), input)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, frag)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	offset, err := queryInt(r, "offset")
	if err != nil {
		s.respondErr(w, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.respondErr(w, err)
		return
	}
	docs, err := s.svc.Documents(r.Context(), s.role(r), offset, limit)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.respondError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit", "validation")
			return
		}
		s.respondError(w, http.StatusBadRequest, "multipart field \"file\" is required", "validation")
		return
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "reading upload: "+err.Error(), "validation")
		return
	}
	name := filepath.Base(header.Filename)
	s.logger.Debug("upload request", zap.String("file", name), zap.Int("bytes", len(content)))
	res, err := s.svc.Ingest(r.Context(), s.role(r), name, content)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	status := http.StatusCreated
	if res.Skipped {
		status = http.StatusOK
	}
	s.respondJSON(w, status, res)
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.respondErr(w, err)
		return
	}
	f := audit.Filter{Event: r.URL.Query().Get("event"), Limit: limit}
	recs, err := s.svc.AuditTrail(r.Context(), s.role(r), f)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"records": recs})
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errs.Validation("%s must be a non-negative integer, got %q", key, raw)
	}
	return n, nil
}

// statusFor maps an error kind to an HTTP status code.
func statusFor(err error) int {
	switch errs.Kind(err) {
	case "validation":
		return http.StatusBadRequest
	case "permission_denied":
		return http.StatusForbidden
	case "empty_results":
		return http.StatusNotFound
	case "no_route_matched":
		return http.StatusUnprocessableEntity
	case "provider":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondErr(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	s.respondError(w, status, err.Error(), errs.Kind(err))
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message, kind string) {
	body := map[string]string{"error": message}
	if kind != "" {
		body["kind"] = kind
	}
	s.respondJSON(w, status, body)
}
