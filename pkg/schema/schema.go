// Package schema implements structural validation of ISO 20022 documents
// against per-message-type schemas.
package schema

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sirosfoundation/go-iso20022/pkg/message"
)

// ErrNilContext is returned when the validator is called without a context
// or without the original document text.
var ErrNilContext = errors.New("schema: context or original text is nil")

// Violation is one schema constraint failure. Line and Column are 1-based;
// zero means the location is unknown.
type Violation struct {
	Line    int
	Column  int
	Message string
}

// Location renders the violation position as "/[line:L, column:C]", or "/"
// when no position is known.
func (v Violation) Location() string {
	if v.Line <= 0 {
		return "/"
	}
	return fmt.Sprintf("/[line:%d, column:%d]", v.Line, v.Column)
}

// Schema validates raw document text.
type Schema interface {
	Validate(text []byte) ([]Violation, error)
}

// Resolver returns the schema for a message type. A nil schema with a nil
// error means no schema is available for that type.
type Resolver func(messageType string) (Schema, error)

// Cache memoizes resolved schemas per message type. Concurrent misses on
// the same key may resolve more than once; the last store wins. Only fully
// resolved schemas are stored.
type Cache struct {
	resolve Resolver

	mu      sync.RWMutex
	entries map[string]Schema
}

// NewCache creates a cache in front of resolve.
func NewCache(resolve Resolver) *Cache {
	return &Cache{
		resolve: resolve,
		entries: make(map[string]Schema),
	}
}

// Get returns the cached schema for messageType, resolving it on a miss.
func (c *Cache) Get(messageType string) (Schema, error) {
	c.mu.RLock()
	s, ok := c.entries[messageType]
	c.mu.RUnlock()
	if ok {
		return s, nil
	}

	if c.resolve == nil {
		return nil, nil
	}
	s, err := c.resolve(messageType)
	if err != nil || s == nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[messageType] = s
	c.mu.Unlock()
	return s, nil
}

// Len returns the number of cached schemas.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Validator checks documents against the schema of their message type.
type Validator struct {
	cache  *Cache
	logger *slog.Logger
}

// NewValidator creates a validator owning a cache in front of resolve.
func NewValidator(resolve Resolver, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{
		cache:  NewCache(resolve),
		logger: logger,
	}
}

// Cache exposes the validator's schema cache.
func (v *Validator) Cache() *Cache {
	return v.cache
}

// Validate returns the structural defects of mc. Documents of unknown type
// and types without a schema yield no defects. Failures inside schema
// resolution or validation become a single VALIDATION_ERROR defect; only a
// nil context or nil text is returned as an error.
func (v *Validator) Validate(mc *message.Context) (errs []message.ValidationError, err error) {
	if mc == nil || mc.OriginalText == nil {
		return nil, ErrNilContext
	}
	if mc.MessageType == "" || mc.MessageType == message.UnknownType {
		return nil, nil
	}

	defer func() {
		if r := recover(); r != nil {
			v.logger.Error("structural validation panicked",
				"message_id", mc.MessageID,
				"message_type", mc.MessageType,
				"panic", r,
			)
			errs = []message.ValidationError{internalError(fmt.Errorf("%v", r))}
			err = nil
		}
	}()

	s, rerr := v.cache.Get(mc.MessageType)
	if rerr != nil {
		v.logger.Warn("schema resolution failed", "message_type", mc.MessageType, "error", rerr)
		return []message.ValidationError{internalError(rerr)}, nil
	}
	if s == nil {
		v.logger.Debug("no schema for message type", "message_type", mc.MessageType)
		return nil, nil
	}

	violations, verr := s.Validate(mc.OriginalText)
	if verr != nil {
		v.logger.Warn("structural validation failed", "message_type", mc.MessageType, "error", verr)
		return []message.ValidationError{internalError(verr)}, nil
	}

	errs = make([]message.ValidationError, 0, len(violations))
	for _, vi := range violations {
		errs = append(errs, message.SchemaViolation(vi.Message, vi.Location()))
	}
	return errs, nil
}

func internalError(err error) message.ValidationError {
	return message.StructuralError(
		message.CodeValidationError,
		fmt.Sprintf("Structural validation error: %v", err),
		"/",
	)
}
