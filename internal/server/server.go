package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"codeassist/internal/app"
	"codeassist/internal/util"
)

const (
	defaultMaxRequestBytes = 1 << 20
	internalErrorMessage   = "Internal Server Error"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App *app.App
	// MaxRequestBytes bounds request bodies; <= 0 uses 1 MiB.
	MaxRequestBytes int64
}

// Server exposes the explain, debug and simplify endpoints.
type Server struct {
	app             *app.App
	mux             *http.ServeMux
	maxRequestBytes int64
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	maxBytes := cfg.MaxRequestBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxRequestBytes
	}
	s := &Server{
		app:             cfg.App,
		mux:             http.NewServeMux(),
		maxRequestBytes: maxBytes,
	}
	s.routes()
	return s
}

// Router returns the configured handler with request id, request log,
// security headers and CORS applied to every response.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog(util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/explain", s.handleExplain)
	s.mux.HandleFunc("/debug", s.handleDebug)
	s.mux.HandleFunc("/simplify", s.handleSimplify)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req explainRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	logger := util.LoggerFromContext(r.Context())
	logger.Info("explain request received", "code_bytes", len(req.Code))
	if req.Code == "" {
		logger.Warn("explain request rejected", "reason", "missing code")
		writeError(w, http.StatusBadRequest, "No code provided!")
		return
	}
	text, err := s.app.Explain(r.Context(), req.Code)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, explainResponse{Explanation: text, CodeSnippet: req.Code})
}

func (s *Server) handleDebug(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req debugRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	logger := util.LoggerFromContext(r.Context())
	logger.Info("debug request received", "code_bytes", len(req.Code))
	if req.Code == "" {
		logger.Warn("debug request rejected", "reason", "missing code")
		writeError(w, http.StatusBadRequest, "No code provided for debugging!")
		return
	}
	text, err := s.app.Debug(r.Context(), req.Code)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, debugResponse{DebuggingSuggestions: text, OriginalCode: req.Code})
}

func (s *Server) handleSimplify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req simplifyRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	logger := util.LoggerFromContext(r.Context())
	logger.Info("simplify request received", "code_bytes", len(req.Code), "language", req.Language)
	if req.Code == "" || req.Language == "" {
		logger.Warn("simplify request rejected", "reason", "missing code or language")
		writeError(w, http.StatusBadRequest, "Code and language are required")
		return
	}
	text, err := s.app.Simplify(r.Context(), req.Code, req.Language)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, simplifyResponse{Simplification: text})
}

// decodeJSON reads a bounded JSON body holding exactly one value into dst.
// An empty body decodes to the zero value so the field checks report what
// is missing.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxRequestBytes))
	err := dec.Decode(dst)
	if errors.Is(err, io.EOF) {
		return true
	}
	if err == nil {
		if err = dec.Decode(&struct{}{}); errors.Is(err, io.EOF) {
			return true
		}
		if err == nil {
			err = errors.New("unexpected data after JSON value")
		}
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return false
	}
	util.LoggerFromContext(r.Context()).Warn("invalid request body", "path", r.URL.Path, "err", err)
	writeError(w, http.StatusBadRequest, "invalid JSON body")
	return false
}

type explainRequest struct {
	Code string `json:"code"`
}

type explainResponse struct {
	Explanation string `json:"explanation"`
	CodeSnippet string `json:"codeSnippet"`
}

type debugRequest struct {
	Code string `json:"code"`
}

type debugResponse struct {
	DebuggingSuggestions string `json:"debugging_suggestions"`
	OriginalCode         string `json:"original_code"`
}

type simplifyRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

type simplifyResponse struct {
	Simplification string `json:"simplification"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// upstreamErrorResponse always carries details, even when the upstream
// message is empty.
type upstreamErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

func methodNotAllowed(w http.ResponseWriter) {
	w.Header().Set("Allow", "POST, OPTIONS")
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeUpstreamError reports a failed generation as a 500 carrying the
// upstream message as details. Handlers validate input before calling the
// app, so every error reaching here came from the upstream call.
func writeUpstreamError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusInternalServerError, upstreamErrorResponse{
		Error:   internalErrorMessage,
		Details: err.Error(),
	})
}
