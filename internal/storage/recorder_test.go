package storage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/go-iso20022/internal/storage"
	"github.com/sirosfoundation/go-iso20022/internal/storage/memory"
	"github.com/sirosfoundation/go-iso20022/pkg/message"
	"github.com/sirosfoundation/go-iso20022/pkg/processor"
	"github.com/sirosfoundation/go-iso20022/pkg/response"
)

func outcome() *processor.Outcome {
	mc := message.NewContext([]byte("<Document/>"), nil)
	mc.MessageID = "MSG-1"
	mc.MessageType = "pacs.008.001.08"
	mc.SenderID = "Alice"

	return &processor.Outcome{
		Context: mc,
		Result: &message.ProcessingResult{
			MessageID:      "MSG-1",
			MessageType:    "pacs.008.001.08",
			Status:         message.StatusError,
			Errors:         []message.ValidationError{message.BusinessRuleError("INVALID_AMOUNT_VALUE", "Amount must be positive", "Amt", "-1")},
			Warnings:       []string{"duplicate message id MSG-1"},
			ProcessingTime: 12 * time.Millisecond,
		},
		Response: &response.Response{
			ID:          "SIMABCDEF012345",
			MessageType: response.TypePaymentStatusReport,
			Status:      "RJCT",
			Text:        "<Document>reply</Document>",
		},
		ReceivedAt: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
	}
}

func TestNewRecord(t *testing.T) {
	rec := storage.NewRecord(outcome())

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "MSG-1", rec.MessageID)
	assert.Equal(t, "pacs.008", rec.Family)
	assert.Equal(t, "ERROR", rec.Status)
	assert.Equal(t, "Alice", rec.SenderID)
	assert.Equal(t, int64(12), rec.ProcessingTimeMs)
	assert.Equal(t, "RJCT", rec.ResponseStatus)
	assert.Equal(t, response.TypePaymentStatusReport, rec.ResponseType)
	require.Len(t, rec.Errors, 1)
	assert.Equal(t, storage.RecordedError{
		Kind:    "BUSINESS_RULE",
		Code:    "INVALID_AMOUNT_VALUE",
		Message: "Amount must be positive",
		Field:   "Amt",
	}, rec.Errors[0])
}

func TestRecorder_Handle(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	rec := storage.NewRecorder(store, nil)

	require.NoError(t, rec.Handle(ctx, outcome()))

	saved, err := store.GetRecordByMessageID(ctx, "MSG-1")
	require.NoError(t, err)

	req, err := store.GetDocument(ctx, saved.RequestDocumentID)
	require.NoError(t, err)
	assert.Equal(t, "<Document/>", string(req.Data))
	assert.Equal(t, storage.DocumentRequest, req.Kind)

	resp, err := store.GetDocument(ctx, saved.ResponseDocumentID)
	require.NoError(t, err)
	assert.Equal(t, "<Document>reply</Document>", string(resp.Data))
	assert.Equal(t, storage.Checksum(resp.Data), resp.Checksum)
}

func TestRecorder_ValidationOnly(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	o := outcome()
	o.Response = nil
	require.NoError(t, storage.NewRecorder(store, nil).Handle(ctx, o))

	saved, err := store.GetRecordByMessageID(ctx, "MSG-1")
	require.NoError(t, err)
	assert.Empty(t, saved.ResponseDocumentID)
	assert.Empty(t, saved.ResponseID)
}

type failingStore struct {
	*memory.Store
}

func (failingStore) SaveRecord(context.Context, *storage.ProcessingRecord) error {
	return errors.New("disk full")
}

func TestRecorder_StoreFailure(t *testing.T) {
	err := storage.NewRecorder(failingStore{memory.NewStore()}, nil).Handle(context.Background(), outcome())
	assert.ErrorContains(t, err, "disk full")
}

func TestRecordFilter_Matches(t *testing.T) {
	at := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	rec := &storage.ProcessingRecord{Family: "pacs.008", Status: "SUCCESS", ReceivedAt: at}

	before, after := at.Add(-time.Second), at.Add(time.Second)
	var nilFilter *storage.RecordFilter

	assert.True(t, nilFilter.Matches(rec))
	assert.True(t, (&storage.RecordFilter{Family: "pacs.008", Since: &before}).Matches(rec))
	assert.False(t, (&storage.RecordFilter{Family: "pain.001"}).Matches(rec))
	assert.False(t, (&storage.RecordFilter{Status: "ERROR"}).Matches(rec))
	assert.False(t, (&storage.RecordFilter{Since: &after}).Matches(rec))
}
