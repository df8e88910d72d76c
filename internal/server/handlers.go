package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sirosfoundation/go-iso20022/internal/storage"
	"github.com/sirosfoundation/go-iso20022/pkg/compression"
	"github.com/sirosfoundation/go-iso20022/pkg/document"
	"github.com/sirosfoundation/go-iso20022/pkg/message"
	"github.com/sirosfoundation/go-iso20022/pkg/processor"
	"github.com/sirosfoundation/go-iso20022/pkg/rules"
	"github.com/sirosfoundation/go-iso20022/pkg/transport"
)

// ServiceName is reported by the info endpoint.
const ServiceName = "ISO20022 Simulator"

var errBodyTooLarge = errors.New("request body too large")

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Warn("store not ready", "error", err)
		s.jsonError(w, "store not ready", http.StatusServiceUnavailable)
		return
	}
	s.jsonResponse(w, map[string]string{"status": "ready"}, http.StatusOK)
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	supported := s.config.ISO20022.SupportedMessages
	if len(supported) == 0 {
		for _, f := range message.Families() {
			supported = append(supported, f.Prefix)
		}
	}
	profile, _ := rules.ParseProfile(s.config.ISO20022.Validation.Profile)

	s.jsonResponse(w, map[string]interface{}{
		"name":              ServiceName,
		"version":           s.version,
		"supportedMessages": supported,
		"profile":           profile.String(),
		"schemaValidation":  s.config.ISO20022.SchemaValidationEnabled(),
	}, http.StatusOK)
}

// Message handlers

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	ctx, cancel := s.processingContext(r.Context())
	defer cancel()

	o, err := s.processor.Process(ctx, r.Header.Get(transport.HeaderMessageType), body)
	if err != nil {
		s.processingError(w, err)
		return
	}

	s.setOutcomeHeaders(w, o)
	s.writeBody(w, r, []byte(o.Response.Text), transport.ContentTypeXML)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	ctx, cancel := s.processingContext(r.Context())
	defer cancel()

	o, err := s.processor.Validate(ctx, r.Header.Get(transport.HeaderMessageType), body)
	if err != nil {
		s.processingError(w, err)
		return
	}

	s.setOutcomeHeaders(w, o)
	s.jsonResponse(w, NewValidationResponse(o.Result), http.StatusOK)
}

// ValidationResponse is the JSON body of the validate endpoint.
type ValidationResponse struct {
	MessageID        string                    `json:"messageId"`
	MessageType      string                    `json:"messageType"`
	Status           message.Status            `json:"status"`
	Errors           []message.ValidationError `json:"errors"`
	Warnings         []string                  `json:"warnings"`
	ProcessingTimeMs int64                     `json:"processingTimeMs"`
}

// NewValidationResponse converts a result, reporting empty lists instead of null.
func NewValidationResponse(res *message.ProcessingResult) *ValidationResponse {
	out := &ValidationResponse{
		MessageID:        res.MessageID,
		MessageType:      res.MessageType,
		Status:           res.Status,
		Errors:           res.Errors,
		Warnings:         res.Warnings,
		ProcessingTimeMs: res.ProcessingTime.Milliseconds(),
	}
	if out.Errors == nil {
		out.Errors = []message.ValidationError{}
	}
	if out.Warnings == nil {
		out.Warnings = []string{}
	}
	return out
}

func (s *Server) processingContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if timeout := s.config.Performance.ProcessingTimeout; timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

// readBody reads the request document, decoding gzip. It writes the error
// response itself and reports false on failure.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := s.decodeBody(w, r)
	if err == nil {
		return body, true
	}

	if errors.Is(err, errBodyTooLarge) || errors.Is(err, compression.ErrTooLarge) {
		s.rejected("too_large")
		s.jsonError(w, fmt.Sprintf("request body exceeds %d bytes", s.config.Server.MaxBodyBytes), http.StatusRequestEntityTooLarge)
		return nil, false
	}
	s.rejected("unreadable")
	s.jsonError(w, "failed to read request body", http.StatusBadRequest)
	return nil, false
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	src := r.Body
	if limit := s.config.Server.MaxBodyBytes; limit > 0 {
		src = http.MaxBytesReader(w, r.Body, limit)
	}
	defer src.Close()

	if compression.IsGzipEncoded(r.Header.Get("Content-Encoding")) {
		body, err := s.compressor.DecompressReader(src)
		if err != nil {
			return nil, classifyReadError(err)
		}
		return body, nil
	}

	body, err := io.ReadAll(src)
	if err != nil {
		return nil, classifyReadError(err)
	}
	return body, nil
}

func classifyReadError(err error) error {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return errBodyTooLarge
	}
	return err
}

// processingError maps a pipeline error to an HTTP status.
func (s *Server) processingError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	switch status {
	case http.StatusBadRequest:
		s.jsonError(w, err.Error(), status)
	case http.StatusGatewayTimeout:
		s.logger.Warn("message processing timed out", "error", err)
		s.jsonError(w, "processing timed out", status)
	default:
		s.logger.Error("message processing failed", "error", err)
		s.jsonError(w, "internal error", status)
	}
}

func statusForError(err error) int {
	var perr *document.ParsingError
	switch {
	case errors.As(err, &perr):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) setOutcomeHeaders(w http.ResponseWriter, o *processor.Outcome) {
	w.Header().Set(transport.HeaderMessageID, o.Result.MessageID)
	w.Header().Set(transport.HeaderProcessingStatus, o.Result.Status.String())
	w.Header().Set(transport.HeaderProcessingTime, fmt.Sprintf("%dms", o.Result.ProcessingTime.Milliseconds()))
}

// writeBody writes a 200 response, gzipped when the client accepts it.
func (s *Server) writeBody(w http.ResponseWriter, r *http.Request, body []byte, contentType string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Add("Vary", "Accept-Encoding")

	if compression.AcceptsGzip(r.Header.Get("Accept-Encoding")) && compression.ShouldCompress(contentType, len(body)) {
		compressed, err := s.compressor.Compress(body)
		if err == nil {
			w.Header().Set("Content-Encoding", compression.EncodingGzip)
			body = compressed
		} else {
			s.logger.Warn("response compression failed", "error", err)
		}
	}

	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// Record handlers

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	filter := &storage.RecordFilter{
		Family: r.URL.Query().Get("family"),
		Status: r.URL.Query().Get("status"),
	}
	if since := r.URL.Query().Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			s.jsonError(w, "since must be an RFC 3339 timestamp", http.StatusBadRequest)
			return
		}
		filter.Since = &t
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 50
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset > 0 {
			filter.Offset = offset
		}
	}

	records, err := s.store.ListRecords(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list records", "error", err)
		s.jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []*storage.ProcessingRecord{}
	}

	total, _ := s.store.CountRecords(r.Context(), filter)

	s.jsonResponse(w, map[string]interface{}{
		"messages": records,
		"total":    total,
		"limit":    filter.Limit,
		"offset":   filter.Offset,
	}, http.StatusOK)
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookupRecord(w, r)
	if !ok {
		return
	}
	s.jsonResponse(w, rec, http.StatusOK)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookupRecord(w, r)
	if !ok {
		return
	}

	var docID string
	switch storage.DocumentKind(r.PathValue("kind")) {
	case storage.DocumentRequest:
		docID = rec.RequestDocumentID
	case storage.DocumentResponse:
		docID = rec.ResponseDocumentID
	default:
		s.jsonError(w, "document kind must be 'request' or 'response'", http.StatusBadRequest)
		return
	}
	if docID == "" {
		s.jsonError(w, "document not found", http.StatusNotFound)
		return
	}

	doc, err := s.store.GetDocument(r.Context(), docID)
	if errors.Is(err, storage.ErrNotFound) {
		s.jsonError(w, "document not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("failed to get document", "error", err)
		s.jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("X-Checksum-SHA256", doc.Checksum)
	s.writeBody(w, r, doc.Data, doc.ContentType+"; charset=utf-8")
}

// lookupRecord resolves {id} as a record id, then as a message id.
func (s *Server) lookupRecord(w http.ResponseWriter, r *http.Request) (*storage.ProcessingRecord, bool) {
	id := r.PathValue("id")

	rec, err := s.store.GetRecord(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		rec, err = s.store.GetRecordByMessageID(r.Context(), id)
	}
	if errors.Is(err, storage.ErrNotFound) {
		s.jsonError(w, "message not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		s.logger.Error("failed to get record", "error", err)
		s.jsonError(w, "internal error", http.StatusInternalServerError)
		return nil, false
	}
	return rec, true
}

// Helper functions

func (s *Server) jsonResponse(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) jsonError(w http.ResponseWriter, msg string, status int) {
	s.jsonResponse(w, map[string]string{"error": msg}, status)
}
