package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/sirosfoundation/go-iso20022/pkg/processor"
	"github.com/sirosfoundation/go-iso20022/pkg/reliability"
)

// ContentTypeXML is stored with raw documents.
const ContentTypeXML = "application/xml"

// Recorder persists processing outcomes. It implements processor.Sink.
type Recorder struct {
	store  Store
	logger *slog.Logger
}

// NewRecorder creates a recorder writing to store.
func NewRecorder(store Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: store, logger: logger}
}

// Handle stores the raw request, the reply and the processing record.
func (r *Recorder) Handle(ctx context.Context, o *processor.Outcome) error {
	rec := NewRecord(o)

	if len(o.Context.OriginalText) > 0 {
		id, err := r.store.StoreDocument(ctx, &DocumentData{
			Kind:        DocumentRequest,
			MessageID:   rec.MessageID,
			ContentType: ContentTypeXML,
			Data:        o.Context.OriginalText,
		})
		if err != nil {
			return fmt.Errorf("storing request document: %w", err)
		}
		rec.RequestDocumentID = id
	}

	if o.Response != nil {
		id, err := r.store.StoreDocument(ctx, &DocumentData{
			Kind:        DocumentResponse,
			MessageID:   rec.MessageID,
			ContentType: ContentTypeXML,
			Data:        []byte(o.Response.Text),
		})
		if err != nil {
			return fmt.Errorf("storing response document: %w", err)
		}
		rec.ResponseDocumentID = id
	}

	if err := r.store.SaveRecord(ctx, rec); err != nil {
		return fmt.Errorf("saving processing record: %w", err)
	}

	r.logger.Debug("processing record stored",
		"record_id", rec.ID,
		"message_id", rec.MessageID,
	)
	return nil
}

// NewRecord builds the record of an outcome. Document IDs are left empty.
func NewRecord(o *processor.Outcome) *ProcessingRecord {
	mc, res := o.Context, o.Result
	rec := &ProcessingRecord{
		ID:               uuid.NewString(),
		MessageID:        res.MessageID,
		MessageType:      res.MessageType,
		Family:           mc.Family().Prefix(),
		Status:           res.Status.String(),
		SenderID:         mc.SenderID,
		ReceiverID:       mc.ReceiverID,
		Errors:           RecordErrors(res.Errors),
		Warnings:         append([]string{}, res.Warnings...),
		ReceivedAt:       o.ReceivedAt.UTC(),
		ProcessingTimeMs: res.ProcessingTime.Milliseconds(),
	}
	if o.Response != nil {
		rec.ResponseID = o.Response.ID
		rec.ResponseType = o.Response.MessageType
		rec.ResponseStatus = o.Response.Status
	}
	return rec
}

// Checksum is the digest stored with raw documents.
func Checksum(data []byte) string {
	return reliability.Fingerprint(data)
}
