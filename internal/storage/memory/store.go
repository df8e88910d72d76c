// Package memory implements storage interfaces in process memory.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/sirosfoundation/go-iso20022/internal/storage"
)

// Store implements storage.Store with maps guarded by a mutex. Records are
// lost on restart.
type Store struct {
	mu        sync.RWMutex
	records   map[string]*storage.ProcessingRecord
	documents map[string]*storage.DocumentData
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		records:   make(map[string]*storage.ProcessingRecord),
		documents: make(map[string]*storage.DocumentData),
	}
}

func (s *Store) Close(ctx context.Context) error {
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return nil
}

// Records

func (s *Store) SaveRecord(ctx context.Context, rec *storage.ProcessingRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	cp := *rec

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = &cp
	return nil
}

func (s *Store) GetRecord(ctx context.Context, id string) (*storage.ProcessingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *Store) GetRecordByMessageID(ctx context.Context, messageID string) (*storage.ProcessingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *storage.ProcessingRecord
	for _, rec := range s.records {
		if rec.MessageID != messageID {
			continue
		}
		if latest == nil || rec.ReceivedAt.After(latest.ReceivedAt) {
			latest = rec
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (s *Store) ListRecords(ctx context.Context, filter *storage.RecordFilter) ([]*storage.ProcessingRecord, error) {
	matched := s.matching(filter)

	if filter != nil {
		if filter.Offset > 0 {
			if filter.Offset >= len(matched) {
				return nil, nil
			}
			matched = matched[filter.Offset:]
		}
		if filter.Limit > 0 && filter.Limit < len(matched) {
			matched = matched[:filter.Limit]
		}
	}
	return matched, nil
}

func (s *Store) CountRecords(ctx context.Context, filter *storage.RecordFilter) (int64, error) {
	return int64(len(s.matching(filter))), nil
}

// matching returns copies of the matching records, newest first.
func (s *Store) matching(filter *storage.RecordFilter) []*storage.ProcessingRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*storage.ProcessingRecord
	for _, rec := range s.records {
		if filter.Matches(rec) {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ReceivedAt.Equal(out[j].ReceivedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ReceivedAt.After(out[j].ReceivedAt)
	})
	return out
}

// Documents

func (s *Store) StoreDocument(ctx context.Context, doc *storage.DocumentData) (string, error) {
	if doc.Checksum == "" {
		doc.Checksum = storage.Checksum(doc.Data)
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	cp := *doc
	cp.Data = append([]byte(nil), doc.Data...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[doc.ID] = &cp
	return doc.ID, nil
}

func (s *Store) GetDocument(ctx context.Context, id string) (*storage.DocumentData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *doc
	cp.Data = append([]byte(nil), doc.Data...)
	return &cp, nil
}

var _ storage.Store = (*Store)(nil)
