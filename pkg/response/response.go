// Package response builds the ISO 20022 reply documents returned for
// processed messages: payment status reports, payment returns and message
// rejects.
package response

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/beevik/etree"

	"github.com/sirosfoundation/go-iso20022/pkg/message"
)

var (
	ErrNilContext = errors.New("response: message context is nil")
	ErrNilResult  = errors.New("response: processing result is nil")
)

// Response message types
const (
	TypePaymentStatusReport         = "pacs.002.001.10"
	TypeCustomerPaymentStatusReport = "pain.002.001.10"
	TypePaymentReturn               = "pacs.004.001.09"
	TypeMessageReject               = "admi.002.001.01"
)

// Placeholder agents used when the original message names none.
const (
	DefaultInstructingAgent = "SIMULATRXXX"
	DefaultInstructedAgent  = "UNKNOWNXXXX"
	InitiatingPartyName     = "ISO20022 Simulator"
)

// Return reasons of generated pacs.004 documents.
const (
	ReturnReasonRejected  = "AC06"
	ReturnReasonDuplicate = "DUPL"
)

const dateTimeLayout = "2006-01-02T15:04:05"

// Response is a generated reply document.
type Response struct {
	ID          string
	MessageType string
	Status      string
	Reason      string
	Text        string
}

// Option configures a Generator.
type Option func(*Generator)

// WithClock sets the time source used for creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		g.now = now
	}
}

// WithIDGenerator replaces NewResponseID.
func WithIDGenerator(fn func() string) Option {
	return func(g *Generator) {
		g.newID = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// Generator builds reply documents for processed messages. It holds no
// per-message state and is safe for concurrent use.
type Generator struct {
	now    func() time.Time
	newID  func() string
	logger *slog.Logger
}

// New creates a generator.
func New(opts ...Option) *Generator {
	g := &Generator{
		now:    time.Now,
		newID:  NewResponseID,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// shape writes the body of one reply document below its Document element.
type shape struct {
	messageType string
	write       func(b *builder)
}

var shapes = map[message.Family]shape{
	message.FamilyPacs008: {TypePaymentStatusReport, writePaymentStatusReport},
	message.FamilyPain001: {TypeCustomerPaymentStatusReport, writeCustomerPaymentStatusReport},
	message.FamilyPacs004: {TypePaymentReturn, writePaymentReturn},
}

var rejectShape = shape{TypeMessageReject, writeMessageReject}

// ShapeFor returns the reply message type produced for a family.
func ShapeFor(f message.Family) string {
	if s, ok := shapes[f]; ok {
		return s.messageType
	}
	return rejectShape.messageType
}

type builder struct {
	mc       *message.Context
	result   *message.ProcessingResult
	id       string
	created  string
	status   string
	reason   string
	document *etree.Element
}

// Generate returns the reply document text for mc.
func (g *Generator) Generate(mc *message.Context, result *message.ProcessingResult) (string, error) {
	resp, err := g.Build(mc, result)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// Build creates the reply document for mc together with its identifiers.
// The reply shape is selected by the family of the original message.
func (g *Generator) Build(mc *message.Context, result *message.ProcessingResult) (*Response, error) {
	if mc == nil {
		return nil, ErrNilContext
	}
	if result == nil {
		return nil, ErrNilResult
	}

	s, ok := shapes[mc.Family()]
	if !ok {
		s = rejectShape
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement("Document")
	root.CreateAttr("xmlns", message.NsISO20022Prefix+s.messageType)

	b := &builder{
		mc:       mc,
		result:   result,
		id:       g.newID(),
		created:  g.now().UTC().Format(dateTimeLayout),
		status:   StatusCode(result.Status),
		reason:   ReasonCode(result.Errors),
		document: root,
	}
	s.write(b)

	doc.Indent(2)
	text, err := doc.WriteToString()
	if err != nil {
		return nil, fmt.Errorf("writing %s response: %w", s.messageType, err)
	}

	g.logger.Debug("response generated",
		"message_id", mc.MessageID,
		"response_id", b.id,
		"response_type", s.messageType,
		"status", b.status,
	)

	return &Response{
		ID:          b.id,
		MessageType: s.messageType,
		Status:      b.status,
		Reason:      b.reason,
		Text:        strings.TrimSpace(text),
	}, nil
}

func writePaymentStatusReport(b *builder) {
	rpt := b.document.CreateElement("FIToFIPmtStsRpt")

	hdr := b.groupHeader(rpt)
	agent(hdr, "InstgAgt", orDefault(b.mc.ReceiverID, DefaultInstructingAgent))
	agent(hdr, "InstdAgt", orDefault(b.mc.SenderID, DefaultInstructedAgent))

	b.originalGroupStatus(rpt)
}

func writeCustomerPaymentStatusReport(b *builder) {
	rpt := b.document.CreateElement("CstmrPmtStsRpt")

	hdr := b.groupHeader(rpt)
	hdr.CreateElement("InitgPty").CreateElement("Nm").SetText(InitiatingPartyName)

	b.originalGroupStatus(rpt)
}

func writePaymentReturn(b *builder) {
	rtr := b.document.CreateElement("PmtRtr")

	hdr := b.groupHeader(rtr)
	hdr.CreateElement("NbOfTxs").SetText("1")
	hdr.CreateElement("SttlmInf").CreateElement("SttlmMtd").SetText("CLRG")

	orgnl := rtr.CreateElement("OrgnlGrpInf")
	orgnl.CreateElement("OrgnlMsgId").SetText(b.mc.MessageID)
	orgnl.CreateElement("OrgnlMsgNmId").SetText(b.mc.MessageType)

	tx := rtr.CreateElement("TxInf")
	tx.CreateElement("RtrId").SetText(b.id)
	if e2e := b.mc.Property(message.PropEndToEndID); e2e != "" {
		tx.CreateElement("OrgnlEndToEndId").SetText(e2e)
	}

	rsnInf := tx.CreateElement("RtrRsnInf")
	code := ReturnReasonDuplicate
	if b.result.HasErrors() {
		code = ReturnReasonRejected
	}
	rsnInf.CreateElement("Rsn").CreateElement("Cd").SetText(code)
	if b.result.HasErrors() {
		rsnInf.CreateElement("AddtlInf").SetText(Summary(b.result.Errors))
	}
}

func writeMessageReject(b *builder) {
	rjct := b.document.CreateElement("MsgRjct")
	hdr := rjct.CreateElement("MsgHdr")
	hdr.CreateElement("MsgId").SetText(b.id)
	hdr.CreateElement("CreDtTm").SetText(b.created)
	rjct.CreateElement("RltdRef").CreateElement("Ref").SetText(b.mc.MessageID)

	rsn := rjct.CreateElement("Rsn")
	rsn.CreateElement("RjctgPtyRsn").SetText(b.status)
	rsn.CreateElement("RjctnDtTm").SetText(b.created)
	if b.result.HasErrors() {
		rsn.CreateElement("RsnDesc").SetText(Summary(b.result.Errors))
	}
	if b.mc.MessageType != "" && b.mc.MessageType != message.UnknownType {
		rsn.CreateElement("AddtlData").SetText(b.mc.MessageType)
	}
}

func (b *builder) groupHeader(parent *etree.Element) *etree.Element {
	hdr := parent.CreateElement("GrpHdr")
	hdr.CreateElement("MsgId").SetText(b.id)
	hdr.CreateElement("CreDtTm").SetText(b.created)
	return hdr
}

func (b *builder) originalGroupStatus(parent *etree.Element) {
	sts := parent.CreateElement("OrgnlGrpInfAndSts")
	sts.CreateElement("OrgnlMsgId").SetText(b.mc.MessageID)
	sts.CreateElement("OrgnlMsgNmId").SetText(b.mc.MessageType)
	if b.mc.CreationDateTime != nil {
		sts.CreateElement("OrgnlCreDtTm").SetText(b.mc.CreationDateTime.UTC().Format(dateTimeLayout))
	}
	sts.CreateElement("GrpSts").SetText(b.status)

	if b.reason == "" {
		return
	}
	rsnInf := sts.CreateElement("StsRsnInf")
	rsnInf.CreateElement("Rsn").CreateElement("Cd").SetText(b.reason)
	rsnInf.CreateElement("AddtlInf").SetText(Summary(b.result.Errors))
}

func agent(parent *etree.Element, tag, bic string) {
	parent.CreateElement(tag).CreateElement("FinInstnId").CreateElement("BICFI").SetText(bic)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
