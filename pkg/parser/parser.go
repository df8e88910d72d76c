// Package parser extracts a message context from raw ISO 20022 documents.
package parser

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"

	"github.com/sirosfoundation/go-iso20022/pkg/document"
	"github.com/sirosfoundation/go-iso20022/pkg/isofmt"
	"github.com/sirosfoundation/go-iso20022/pkg/message"
)

// Parser builds trees and extracts message contexts from them.
type Parser struct {
	builder *document.Builder
	logger  *slog.Logger
	newID   func() string
}

// Option configures a Parser.
type Option func(*Parser)

// WithMaxDocumentSize bounds the accepted input size in bytes.
func WithMaxDocumentSize(n int) Option {
	return func(p *Parser) {
		p.builder = document.NewBuilder(n)
	}
}

// WithLogger sets the logger used for extraction diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Parser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithIDGenerator replaces the generator used when a document has no MsgId.
func WithIDGenerator(fn func() string) Option {
	return func(p *Parser) {
		if fn != nil {
			p.newID = fn
		}
	}
}

// New creates a parser.
func New(opts ...Option) *Parser {
	p := &Parser{
		builder: &document.Builder{},
		logger:  slog.Default(),
		newID:   generateMessageID,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse builds the tree of text and extracts its context. Only tree
// building can fail; every extraction step after the message id is best
// effort and leaves its field empty when it cannot produce a value.
func (p *Parser) Parse(text []byte) (*message.Context, error) {
	return p.ParseWithHint(text, "")
}

// ParseWithHint is Parse with a caller supplied message type. The hint is
// used only when the document itself does not reveal its type.
func (p *Parser) ParseWithHint(text []byte, hint string) (*message.Context, error) {
	doc, err := p.builder.Parse(text)
	if err != nil {
		return nil, err
	}

	mc := message.NewContext(text, doc)
	root := businessDocument(doc.Root())

	mc.MessageID = p.messageID(root)

	if t, err := creationDateTime(root); err != nil {
		p.diagnostic(mc, "creation_datetime", err)
	} else if t != nil {
		mc.CreationDateTime = t
	}

	for key, value := range businessIdentifiers(root) {
		mc.Properties[key] = value
	}

	mc.SenderID, mc.ReceiverID = participants(root)

	mc.MessageDefinitionIdentifier = root.NamespaceURI()
	if t, err := messageType(root); err != nil {
		p.diagnostic(mc, "message_type", err)
	} else {
		mc.MessageType = t
	}
	applyHint(mc, hint)

	mc.MessageName = messageName(root)
	mc.BusinessMessageIdentifier = document.Text(document.Find(doc.Root(), document.LocalName("BizMsgIdr")))

	for prefix, uri := range namespaces(root) {
		mc.Namespaces[prefix] = uri
	}

	return mc, nil
}

func (p *Parser) diagnostic(mc *message.Context, step string, err error) {
	p.logger.Debug("extraction step produced no value",
		"step", step,
		"message_id", mc.MessageID,
		"error", err,
	)
}

func (p *Parser) messageID(root *etree.Element) string {
	if id := document.Text(document.Find(root, document.LocalName("MsgId"))); id != "" {
		return id
	}
	return p.newID()
}

func generateMessageID() string {
	return "MSG-" + uuid.NewString()
}

// businessDocument returns the ISO "Document" element. Messages wrapped in an
// envelope together with a business application header carry it below the root.
func businessDocument(root *etree.Element) *etree.Element {
	if root.Tag == "Document" {
		return root
	}
	if d := document.Find(root, document.LocalName("Document")); d != nil {
		return d
	}
	return root
}

func creationDateTime(root *etree.Element) (*time.Time, error) {
	e := document.Find(root, document.LocalName("CreDtTm"))
	if e == nil {
		return nil, nil
	}
	t, err := isofmt.ParseDateTime(document.Text(e))
	if err != nil {
		return nil, err
	}
	return &t, nil
}

var identifierFields = []struct {
	key   string
	field string
}{
	{message.PropEndToEndID, "EndToEndId"},
	{message.PropInstructionID, "InstrId"},
	{message.PropTransactionID, "TxId"},
	{message.PropNumberOfTransactions, "NbOfTxs"},
	{message.PropControlSum, "CtrlSum"},
}

func businessIdentifiers(root *etree.Element) map[string]string {
	out := make(map[string]string)
	for _, f := range identifierFields {
		if v := document.Text(document.Find(root, document.LocalName(f.field))); v != "" {
			out[f.key] = v
		}
	}
	return out
}

func firstText(root *etree.Element, paths ...[]string) string {
	for _, path := range paths {
		if v := document.Text(document.FindPath(root, path...)); v != "" {
			return v
		}
	}
	return ""
}

func participants(root *etree.Element) (sender, receiver string) {
	sender = firstText(root,
		[]string{"Dbtr", "Nm"},
		[]string{"InitgPty", "Nm"},
		[]string{"DbtrAgt", "FinInstnId", "BICFI"},
		[]string{"DbtrAgt", "FinInstnId", "BIC"},
	)
	receiver = firstText(root,
		[]string{"Cdtr", "Nm"},
		[]string{"CdtrAgt", "FinInstnId", "BICFI"},
		[]string{"CdtrAgt", "FinInstnId", "BIC"},
	)
	return sender, receiver
}

var typeToken = regexp.MustCompile(`[a-z]{4}\.\d{3}(\.\d{3}(\.\d{2,3})?)?`)

// messageType derives the type token from the namespace, e.g.
// "urn:iso:std:iso:20022:tech:xsd:pain.001.001.03" yields "pain.001.001.03".
// Without a usable namespace the first business element decides the family.
func messageType(root *etree.Element) (string, error) {
	if ns := root.NamespaceURI(); ns != "" {
		for _, segment := range strings.Split(ns, ":") {
			if message.Classify(segment).Known() {
				return segment, nil
			}
		}
		// URL style namespaces such as "http://example.com/iso/pain.001.001.03"
		for _, token := range typeToken.FindAllString(ns, -1) {
			if message.Classify(token).Known() {
				return token, nil
			}
		}
	}

	first := document.FirstChildElement(root)
	if first == nil {
		return "", fmt.Errorf("root %q has no namespace match and no child elements", root.Tag)
	}
	if f := message.FamilyForElement(first.Tag); f.Known() {
		return f.Prefix(), nil
	}
	return "", fmt.Errorf("no family for namespace %q or element %q", root.NamespaceURI(), first.Tag)
}

func applyHint(mc *message.Context, hint string) {
	hint = strings.TrimSpace(hint)
	if hint == "" {
		return
	}
	if mc.MessageType == message.UnknownType {
		if message.Classify(hint).Known() {
			mc.MessageType = hint
		}
		return
	}
	if message.Classify(hint) != mc.Family() {
		mc.Properties[message.PropTypeHintMismatch] = hint
	}
}

func messageName(root *etree.Element) string {
	if root.Tag == "Document" {
		if first := document.FirstChildElement(root); first != nil {
			return first.Tag
		}
	}
	return root.Tag
}

func namespaces(root *etree.Element) map[string]string {
	out := map[string]string{"": root.NamespaceURI()}
	for _, a := range root.Attr {
		if a.Space == "xmlns" {
			out[a.Key] = a.Value
		}
	}
	return out
}
