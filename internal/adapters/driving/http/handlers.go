package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/swaggo/swag"

	"github.com/custodia-labs/askmydocs/internal/core/domain"
)

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"invalid request body"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// ReadyResponse reports dependency checks and whether questions can be answered
type ReadyResponse struct {
	Status     string            `json:"status" example:"ready"`
	IndexReady bool              `json:"index_ready"`
	CanAnswer  bool              `json:"can_answer"`
	Checks     map[string]string `json:"checks"`
}

// QueryRequest is the body of POST /query
type QueryRequest struct {
	Query string `json:"query" validate:"required" example:"What does the policy cover for lost baggage?"`
	TopK  int    `json:"top_k" validate:"min=0" example:"3"`
}

// UploadResponse is returned once an upload is queued for indexing
type UploadResponse struct {
	DocumentID string             `json:"document_id" example:"5f0c6a4e-2b1d-4c8e-9a57-0d3f1e2b7c44"`
	Filename   string             `json:"filename" example:"policy.pdf"`
	Status     domain.IndexStatus `json:"status" example:"processing"`
}

// DocumentListResponse wraps a page of document records
type DocumentListResponse struct {
	Documents []*domain.DocumentRecord `json:"documents"`
	Count     int                      `json:"count" example:"1"`
}

// SystemPromptRequest is the body of PUT /settings/system-prompt
type SystemPromptRequest struct {
	SystemPrompt string `json:"system_prompt" validate:"required"`
}

// SystemPromptResponse carries the current system prompt
type SystemPromptResponse struct {
	SystemPrompt string `json:"system_prompt"`
}

// multipartOverhead is allowed on top of the file size limit for form
// boundaries and headers.
const multipartOverhead = 1 << 20

var validate = newValidator()

// newValidator reports fields by their JSON names
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Health endpoints

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Welcome to AskMyDocs API. See /swagger/doc.json for the API description.",
	})
}

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the liveness status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Checks the queue and stores, and reports whether an index is being served
// @Tags         Health
// @Produce      json
// @Success      200  {object}  ReadyResponse
// @Failure      503  {object}  ReadyResponse
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := ReadyResponse{Status: "ready", Checks: make(map[string]string, len(s.checks))}
	status := http.StatusOK
	for name, p := range s.checks {
		if p == nil {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	if s.runtime != nil {
		resp.IndexReady = s.runtime.IndexReady()
		resp.CanAnswer = s.runtime.CanAnswer()
	}

	writeJSON(w, status, resp)
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: s.version})
}

func (s *Server) handleSwagger(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "swagger document unavailable")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(doc))
}

// Question endpoints

// handleQuery godoc
// @Summary      Ask a question
// @Description  Retrieves the passages most similar to the question and generates an answer grounded in them
// @Tags         Questions
// @Accept       json
// @Produce      json
// @Param        request  body      QueryRequest   true  "Question and optional top_k"
// @Success      200      {object}  domain.Answer
// @Failure      400      {object}  ErrorResponse  "Invalid request"
// @Failure      500      {object}  ErrorResponse  "Provider or storage failure"
// @Failure      504      {object}  ErrorResponse  "Provider timeout"
// @Router       /query [post]
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	answer, err := s.questions.Ask(r.Context(), req.Query, req.TopK)
	if errors.Is(err, domain.ErrUninitializedIndex) {
		writeJSON(w, http.StatusOK, domain.NewNoDocumentsAnswer())
		return
	}
	if err != nil {
		s.writeServiceError(w, r, err, "failed to answer question")
		return
	}

	writeJSON(w, http.StatusOK, answer)
}

// Document endpoints

// handleUpload godoc
// @Summary      Upload a document
// @Description  Stores a document and queues it for background indexing
// @Tags         Documents
// @Accept       mpfd
// @Produce      json
// @Param        file  formData  file  true  "PDF, text or markdown document"
// @Success      202   {object}  UploadResponse
// @Failure      400   {object}  ErrorResponse  "Missing, empty or oversized file"
// @Failure      415   {object}  ErrorResponse  "Unsupported file type"
// @Failure      500   {object}  ErrorResponse  "Internal server error"
// @Router       /upload [post]
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusBadRequest, "file exceeds the upload limit of "+strconv.FormatInt(s.maxUpload, 10)+" bytes")
		default:
			writeError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		}
		return
	}
	defer file.Close()
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	record, err := s.ingestion.Submit(r.Context(), header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		s.writeServiceError(w, r, err, "failed to accept upload")
		return
	}

	writeJSON(w, http.StatusAccepted, UploadResponse{
		DocumentID: record.ID,
		Filename:   record.Filename,
		Status:     record.Status,
	})
}

// handleListDocuments godoc
// @Summary      List documents
// @Description  Lists uploaded documents and their indexing status, newest first
// @Tags         Documents
// @Produce      json
// @Param        limit   query     int  false  "Maximum records to return (max 500)"  default(50)
// @Param        offset  query     int  false  "Records to skip"  default(0)
// @Success      200     {object}  DocumentListResponse
// @Failure      400     {object}  ErrorResponse  "Invalid pagination"
// @Failure      500     {object}  ErrorResponse  "Internal server error"
// @Router       /documents [get]
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit", 50)
	if !ok {
		return
	}
	offset, ok := queryInt(w, r, "offset", 0)
	if !ok {
		return
	}

	docs, err := s.ingestion.List(r.Context(), limit, offset)
	if err != nil {
		s.writeServiceError(w, r, err, "failed to list documents")
		return
	}
	if docs == nil {
		docs = []*domain.DocumentRecord{}
	}

	writeJSON(w, http.StatusOK, DocumentListResponse{Documents: docs, Count: len(docs)})
}

// handleGetDocument godoc
// @Summary      Get document
// @Description  Returns one document record, used to poll indexing status after an upload
// @Tags         Documents
// @Produce      json
// @Param        id   path      string  true  "Document ID"
// @Success      200  {object}  domain.DocumentRecord
// @Failure      404  {object}  ErrorResponse  "Document not found"
// @Failure      500  {object}  ErrorResponse  "Internal server error"
// @Router       /documents/{id} [get]
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.ingestion.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err, "failed to get document")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// Settings endpoints

// handleGetSystemPrompt godoc
// @Summary      Get system prompt
// @Description  Returns the instruction sent to the language model with every question
// @Tags         Settings
// @Produce      json
// @Success      200  {object}  SystemPromptResponse
// @Router       /settings/system-prompt [get]
func (s *Server) handleGetSystemPrompt(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, SystemPromptResponse{SystemPrompt: s.questions.SystemPrompt()})
}

// handleSetSystemPrompt godoc
// @Summary      Set system prompt
// @Description  Replaces the instruction sent to the language model
// @Tags         Settings
// @Accept       json
// @Produce      json
// @Param        request  body      SystemPromptRequest  true  "New system prompt"
// @Success      200      {object}  SystemPromptResponse
// @Failure      400      {object}  ErrorResponse  "Empty prompt"
// @Router       /settings/system-prompt [put]
func (s *Server) handleSetSystemPrompt(w http.ResponseWriter, r *http.Request) {
	var req SystemPromptRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.questions.SetSystemPrompt(req.SystemPrompt); err != nil {
		if errors.Is(err, domain.ErrConfiguration) {
			writeError(w, http.StatusBadRequest, "system_prompt must not be empty")
			return
		}
		s.writeServiceError(w, r, err, "failed to set system prompt")
		return
	}

	writeJSON(w, http.StatusOK, SystemPromptResponse{SystemPrompt: s.questions.SystemPrompt()})
}

// Helpers

// statusFor maps a service error onto an HTTP status. Client errors carry
// their own message; everything else gets a generic one.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, domain.ErrInvalidQuery), errors.Is(err, domain.ErrInvalidUpload):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrProviderTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrIndexBusy):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := statusFor(err)
	switch status {
	case http.StatusBadRequest, http.StatusUnsupportedMediaType:
		writeError(w, status, err.Error())
	case http.StatusNotFound:
		writeError(w, status, "not found")
	case http.StatusGatewayTimeout:
		s.logger.Warn(fallback, "path", r.URL.Path, "error", err)
		writeError(w, status, "provider timed out")
	default:
		s.logger.Error(fallback, "path", r.URL.Path, "error", err)
		writeError(w, status, fallback)
	}
}

// decodeJSON decodes and validates a request body, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request body"
	}
	msgs := make([]string, len(verrs))
	for i, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs[i] = fe.Field() + " is required"
		case "min":
			msgs[i] = fe.Field() + " must be at least " + fe.Param()
		default:
			msgs[i] = fe.Field() + " must be " + fe.Tag() + " " + fe.Param()
		}
	}
	return strings.Join(msgs, "; ")
}

func queryInt(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, name+" must be a non-negative integer")
		return 0, false
	}
	return n, true
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
