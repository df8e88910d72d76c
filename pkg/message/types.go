package message

import (
	"time"

	"github.com/beevik/etree"
)

// Namespace prefix shared by all ISO 20022 message definitions
const (
	NsISO20022Prefix = "urn:iso:std:iso:20022:tech:xsd:"
	NsHead001        = NsISO20022Prefix + "head.001.001.02"
)

// UnknownType is the message type of documents whose family cannot be determined.
const UnknownType = "unknown"

// Property keys populated by the context extractor
const (
	PropEndToEndID           = "endToEndId"
	PropInstructionID        = "instructionId"
	PropTransactionID        = "transactionId"
	PropNumberOfTransactions = "numberOfTransactions"
	PropControlSum           = "controlSum"
	PropTypeHintMismatch     = "typeHintMismatch"
)

// Context is the normalized view of one inbound document.
//
// A Context is populated once by the parser and then only read by the
// validators and the response generator.
type Context struct {
	MessageID   string
	MessageType string
	MessageName string

	// BusinessMessageIdentifier is the BizMsgIdr of a business application header, if any.
	BusinessMessageIdentifier string
	// MessageDefinitionIdentifier is the raw namespace URI of the document.
	MessageDefinitionIdentifier string

	CreationDateTime *time.Time
	SenderID         string
	ReceiverID       string

	// OriginalText is kept for structural validation, which runs over the raw bytes.
	OriginalText []byte
	Tree         *etree.Document

	// Namespaces maps prefixes to namespace URIs; the default namespace uses "".
	Namespaces map[string]string
	Properties map[string]any
}

// NewContext returns an empty context for the given document.
func NewContext(text []byte, tree *etree.Document) *Context {
	return &Context{
		MessageType:  UnknownType,
		OriginalText: text,
		Tree:         tree,
		Namespaces:   make(map[string]string),
		Properties:   make(map[string]any),
	}
}

// Family classifies the context's message type.
func (c *Context) Family() Family {
	return Classify(c.MessageType)
}

// Property returns a string property, or "" when it is absent or not a string.
func (c *Context) Property(key string) string {
	if c.Properties == nil {
		return ""
	}
	s, _ := c.Properties[key].(string)
	return s
}
