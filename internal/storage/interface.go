// Package storage provides persistence interfaces and implementations for
// processed ISO 20022 messages.
//
// # Interface Design
//
// The storage layer is organized into focused interfaces:
//
//   - [RecordStore]: one processing record per processed message
//   - [DocumentStore]: raw request and response documents
//
// The [Store] interface combines both sub-stores for convenience.
//
// # Implementations
//
// The memory sub-package keeps everything in process and is the default.
// The mongodb sub-package stores records in a collection and raw documents
// in a GridFS bucket.
//
// # Concurrency
//
// All store implementations must be safe for concurrent use from multiple
// goroutines.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/sirosfoundation/go-iso20022/pkg/message"
)

// ErrNotFound is returned when a record or document does not exist.
var ErrNotFound = errors.New("storage: not found")

// Store is the main storage interface combining all sub-stores
type Store interface {
	RecordStore
	DocumentStore

	// Close releases storage resources
	Close(ctx context.Context) error

	// Ping checks backend connectivity
	Ping(ctx context.Context) error
}

// RecordStore manages processing records
type RecordStore interface {
	// SaveRecord stores a record, replacing one with the same ID
	SaveRecord(ctx context.Context, rec *ProcessingRecord) error

	// GetRecord retrieves a record by ID
	GetRecord(ctx context.Context, id string) (*ProcessingRecord, error)

	// GetRecordByMessageID retrieves the latest record for a message id
	GetRecordByMessageID(ctx context.Context, messageID string) (*ProcessingRecord, error)

	// ListRecords returns records, newest first
	ListRecords(ctx context.Context, filter *RecordFilter) ([]*ProcessingRecord, error)

	// CountRecords returns the number of matching records
	CountRecords(ctx context.Context, filter *RecordFilter) (int64, error)
}

// DocumentStore manages raw documents (potentially large text)
type DocumentStore interface {
	// StoreDocument stores a document and returns its ID
	StoreDocument(ctx context.Context, doc *DocumentData) (string, error)

	// GetDocument retrieves a document by ID
	GetDocument(ctx context.Context, id string) (*DocumentData, error)
}

// Domain models

// ProcessingRecord is the persisted outcome of one processed message
type ProcessingRecord struct {
	ID          string `bson:"_id" json:"id"`
	MessageID   string `bson:"message_id" json:"messageId"`
	MessageType string `bson:"message_type" json:"messageType"`
	Family      string `bson:"family" json:"family"`
	Status      string `bson:"status" json:"status"`

	SenderID   string `bson:"sender_id,omitempty" json:"senderId,omitempty"`
	ReceiverID string `bson:"receiver_id,omitempty" json:"receiverId,omitempty"`

	Errors   []RecordedError `bson:"errors" json:"errors"`
	Warnings []string        `bson:"warnings" json:"warnings"`

	// Reply document
	ResponseID     string `bson:"response_id,omitempty" json:"responseId,omitempty"`
	ResponseType   string `bson:"response_type,omitempty" json:"responseType,omitempty"`
	ResponseStatus string `bson:"response_status,omitempty" json:"responseStatus,omitempty"`

	// Raw documents in the document store
	RequestDocumentID  string `bson:"request_document_id,omitempty" json:"requestDocumentId,omitempty"`
	ResponseDocumentID string `bson:"response_document_id,omitempty" json:"responseDocumentId,omitempty"`

	// Timestamps
	ReceivedAt       time.Time `bson:"received_at" json:"receivedAt"`
	ProcessingTimeMs int64     `bson:"processing_time_ms" json:"processingTimeMs"`
}

// RecordedError is a validation defect as stored
type RecordedError struct {
	Kind    string `bson:"kind" json:"kind"`
	Code    string `bson:"code" json:"code"`
	Message string `bson:"message" json:"message"`
	Field   string `bson:"field,omitempty" json:"field,omitempty"`
	Path    string `bson:"path,omitempty" json:"path,omitempty"`
}

// RecordFilter narrows ListRecords and CountRecords
type RecordFilter struct {
	// Family is a family prefix such as "pacs.008"
	Family string
	Status string
	Since  *time.Time
	Limit  int
	Offset int
}

// DocumentKind tells request and response documents apart
type DocumentKind string

const (
	DocumentRequest  DocumentKind = "request"
	DocumentResponse DocumentKind = "response"
)

// DocumentData holds document content and metadata
type DocumentData struct {
	ID          string       `json:"id"`
	Kind        DocumentKind `json:"kind"`
	MessageID   string       `json:"messageId"`
	ContentType string       `json:"contentType"`
	Data        []byte       `json:"-"`
	Checksum    string       `json:"checksum"`
}

// RecordErrors converts validation defects to their stored form.
func RecordErrors(errs []message.ValidationError) []RecordedError {
	out := make([]RecordedError, 0, len(errs))
	for _, e := range errs {
		out = append(out, RecordedError{
			Kind:    e.Kind.String(),
			Code:    e.Code,
			Message: e.Message,
			Field:   e.Field,
			Path:    e.Path,
		})
	}
	return out
}

// Matches reports whether rec passes the filter's field conditions.
// Limit and Offset are not considered.
func (f *RecordFilter) Matches(rec *ProcessingRecord) bool {
	if f == nil {
		return true
	}
	if f.Family != "" && rec.Family != f.Family {
		return false
	}
	if f.Status != "" && rec.Status != f.Status {
		return false
	}
	if f.Since != nil && rec.ReceivedAt.Before(*f.Since) {
		return false
	}
	return true
}
