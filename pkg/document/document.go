package document

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"

	"github.com/beevik/etree"
)

// DefaultMaxSize bounds the size of documents accepted by Parse.
const DefaultMaxSize = 10 << 20

var (
	ErrEmptyDocument    = errors.New("document is empty")
	ErrNoRootElement    = errors.New("document has no root element")
	ErrDisallowedDTD    = errors.New("document type declarations are not allowed")
	ErrDocumentTooLarge = errors.New("document exceeds maximum size")
	ErrMultipleRoots    = errors.New("document has more than one root element")
	ErrTextOutsideRoot  = errors.New("document has text outside the root element")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParsingError is returned for any input that cannot be turned into a tree.
type ParsingError struct {
	Cause error
}

func (e *ParsingError) Error() string {
	return fmt.Sprintf("parsing document: %v", e.Cause)
}

func (e *ParsingError) Unwrap() error {
	return e.Cause
}

// Builder parses raw text into trees. The zero value uses DefaultMaxSize.
type Builder struct {
	// MaxSize is the largest accepted input in bytes; <= 0 means DefaultMaxSize.
	MaxSize int
}

// NewBuilder creates a builder accepting documents of up to maxSize bytes.
func NewBuilder(maxSize int) *Builder {
	return &Builder{MaxSize: maxSize}
}

// Parse builds a tree using the default builder.
func Parse(text []byte) (*etree.Document, error) {
	var b Builder
	return b.Parse(text)
}

// Parse builds a tree from text.
//
// Entity expansion is never performed: the input is first scanned in strict
// mode without an entity table, so undeclared references fail, and any
// DOCTYPE or other markup declaration rejects the whole document before a
// tree is allocated. Only UTF-8 input is accepted.
func (b *Builder) Parse(text []byte) (*etree.Document, error) {
	maxSize := b.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if len(text) > maxSize {
		return nil, &ParsingError{Cause: fmt.Errorf("%w: %d > %d bytes", ErrDocumentTooLarge, len(text), maxSize)}
	}

	text = bytes.TrimPrefix(text, utf8BOM)
	if len(bytes.TrimSpace(text)) == 0 {
		return nil, &ParsingError{Cause: ErrEmptyDocument}
	}

	if err := scan(text); err != nil {
		return nil, &ParsingError{Cause: err}
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(text); err != nil {
		return nil, &ParsingError{Cause: err}
	}
	if doc.Root() == nil {
		return nil, &ParsingError{Cause: ErrNoRootElement}
	}
	return doc, nil
}

// scan checks well-formedness and rejects markup declarations. Exactly one
// root element is allowed and only whitespace may surround it.
func scan(text []byte) error {
	dec := xml.NewDecoder(bytes.NewReader(text))
	dec.Strict = true
	depth, roots := 0, 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.Directive:
			return ErrDisallowedDTD
		case xml.StartElement:
			if depth == 0 {
				roots++
				if roots > 1 {
					return ErrMultipleRoots
				}
			}
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			if depth == 0 && len(bytes.TrimSpace(t)) > 0 {
				return ErrTextOutsideRoot
			}
		}
	}
}
