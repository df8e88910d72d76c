package processor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/go-iso20022/pkg/document"
	"github.com/sirosfoundation/go-iso20022/pkg/message"
	"github.com/sirosfoundation/go-iso20022/pkg/reliability"
	"github.com/sirosfoundation/go-iso20022/pkg/response"
	"github.com/sirosfoundation/go-iso20022/pkg/rules"
	"github.com/sirosfoundation/go-iso20022/pkg/schema"
)

const pacs008 = `<?xml version="1.0" encoding="UTF-8"?>
<Document xmlns="urn:iso:std:iso:20022:tech:xsd:pacs.008.001.08">
  <FIToFICstmrCdtTrf>
    <GrpHdr>
      <MsgId>MSG-123</MsgId>
      <CreDtTm>2024-01-15T10:30:00</CreDtTm>
      <NbOfTxs>1</NbOfTxs>
      <SttlmInf><SttlmMtd>CLRG</SttlmMtd></SttlmInf>
    </GrpHdr>
    <CdtTrfTxInf>
      <PmtId><EndToEndId>E2E-1</EndToEndId></PmtId>
      <IntrBkSttlmAmt Ccy="EUR">100.00</IntrBkSttlmAmt>
      <IntrBkSttlmDt>2024-01-15T00:00:00</IntrBkSttlmDt>
      <ChrgBr>SLEV</ChrgBr>
      <Dbtr><Nm>Alice</Nm></Dbtr>
      <DbtrAgt><FinInstnId><BICFI>DEUTDEFF</BICFI></FinInstnId></DbtrAgt>
      <CdtrAgt><FinInstnId><BICFI>BNPAFRPP</BICFI></FinInstnId></CdtrAgt>
      <Cdtr><Nm>Bob</Nm></Cdtr>
    </CdtTrfTxInf>
  </FIToFICstmrCdtTrf>
</Document>`

const pacs004 = `<Document xmlns="urn:iso:std:iso:20022:tech:xsd:pacs.004.001.09">
  <PmtRtr>
    <GrpHdr><MsgId>RTR-001</MsgId><CreDtTm>2024-01-15T10:30:00</CreDtTm><NbOfTxs>1</NbOfTxs></GrpHdr>
    <OrgnlGrpInf><OrgnlMsgId>MSG-123</OrgnlMsgId><OrgnlMsgNmId>pacs.008.001.08</OrgnlMsgNmId></OrgnlGrpInf>
    <TxInf>
      <RtrId>RTR-1</RtrId>
      <RtrdIntrBkSttlmAmt Ccy="EUR">100.00</RtrdIntrBkSttlmAmt>
      <RtrRsnInf><Rsn><Cd>AC04</Cd></Rsn></RtrRsnInf>
    </TxInf>
  </PmtRtr>
</Document>`

const pain001NegativeAmount = `<Document xmlns="urn:iso:std:iso:20022:tech:xsd:pain.001.001.09">
  <CstmrCdtTrfInitn>
    <GrpHdr><MsgId>PAIN-1</MsgId><CreDtTm>2024-01-15T10:30:00</CreDtTm><NbOfTxs>1</NbOfTxs></GrpHdr>
    <PmtInf>
      <CdtTrfTxInf><Amt><InstdAmt Ccy="EUR">-100.00</InstdAmt></Amt></CdtTrfTxInf>
    </PmtInf>
  </CstmrCdtTrfInitn>
</Document>`

type recordingMetrics struct {
	mu            sync.Mutex
	processed     map[string]int
	kinds         []message.ErrorKind
	parseFailures int
	duplicates    int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{processed: make(map[string]int)}
}

func (m *recordingMetrics) MessageProcessed(family string, status message.Status, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processed[family+"/"+status.String()]++
}

func (m *recordingMetrics) ValidationError(kind message.ErrorKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kinds = append(m.kinds, kind)
}

func (m *recordingMetrics) ParseFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.parseFailures++
}

func (m *recordingMetrics) Duplicate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.duplicates++
}

type recordingSink struct {
	mu       sync.Mutex
	outcomes []*Outcome
	err      error
}

func (s *recordingSink) Handle(_ context.Context, o *Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, o)
	return s.err
}

func TestProcess_AcceptedPacs008(t *testing.T) {
	metrics := newRecordingMetrics()
	sink := &recordingSink{}
	p := New(WithMetrics(metrics), WithSink(sink))

	o, err := p.Process(context.Background(), "", []byte(pacs008))
	require.NoError(t, err)

	assert.Equal(t, message.StatusSuccess, o.Result.Status)
	assert.Empty(t, o.Result.Errors)
	assert.Equal(t, "MSG-123", o.Result.MessageID)
	assert.Equal(t, "pacs.008.001.08", o.Result.MessageType)

	require.NotNil(t, o.Response)
	assert.Equal(t, response.TypePaymentStatusReport, o.Response.MessageType)
	assert.Equal(t, "ACCP", o.Response.Status)
	assert.True(t, strings.HasSuffix(o.Response.Text, "</Document>"))
	assert.Contains(t, o.Response.Text, "<OrgnlMsgId>MSG-123</OrgnlMsgId>")

	require.Len(t, sink.outcomes, 1)
	assert.Same(t, o, sink.outcomes[0])
	assert.Equal(t, 1, metrics.processed["pacs.008/SUCCESS"])
}

func TestProcess_BusinessRuleRejection(t *testing.T) {
	metrics := newRecordingMetrics()
	p := New(WithStructuralValidator(nil), WithMetrics(metrics))

	o, err := p.Process(context.Background(), "", []byte(pain001NegativeAmount))
	require.NoError(t, err)

	assert.Equal(t, message.StatusError, o.Result.Status)
	require.Len(t, o.Result.Errors, 1)
	assert.Equal(t, rules.CodeInvalidAmountValue, o.Result.Errors[0].Code)
	assert.Equal(t, "RJCT", o.Response.Status)
	assert.Equal(t, "RR04", o.Response.Reason)
	assert.Equal(t, []message.ErrorKind{message.KindBusinessRule}, metrics.kinds)
	assert.Equal(t, 1, metrics.processed["pain.001/ERROR"])
}

func TestProcess_StructuralErrorsComeFirst(t *testing.T) {
	text := strings.Replace(pacs008, "<ChrgBr>SLEV</ChrgBr>", "", 1)
	text = strings.Replace(text, `Ccy="EUR"`, `Ccy="XYZ"`, 1)

	o, err := New().Process(context.Background(), "", []byte(text))
	require.NoError(t, err)
	require.Len(t, o.Result.Errors, 2)
	assert.Equal(t, message.KindSchemaViolation, o.Result.Errors[0].Kind)
	assert.Equal(t, rules.CodeInvalidCurrencyCode, o.Result.Errors[1].Code)
	assert.Equal(t, "DS02", o.Response.Reason)
}

func TestProcess_PaymentReturnWithoutErrors(t *testing.T) {
	o, err := New().Process(context.Background(), "", []byte(pacs004))
	require.NoError(t, err)
	require.Empty(t, o.Result.Errors)
	assert.Equal(t, response.TypePaymentReturn, o.Response.MessageType)
	assert.Contains(t, o.Response.Text, "<Cd>DUPL</Cd>")
}

func TestProcess_ParsingFailure(t *testing.T) {
	metrics := newRecordingMetrics()
	sink := &recordingSink{}
	p := New(WithMetrics(metrics), WithSink(sink))

	for _, text := range []string{"", "   ", "<Document><unclosed></Document>"} {
		o, err := p.Process(context.Background(), "", []byte(text))
		require.Error(t, err)
		assert.Nil(t, o)

		var perr *document.ParsingError
		assert.ErrorAs(t, err, &perr)
	}
	assert.Empty(t, sink.outcomes)
	assert.Equal(t, 3, metrics.parseFailures)
}

func TestProcess_DuplicateWarning(t *testing.T) {
	detector := reliability.NewMemoryDetector(time.Hour)
	defer detector.Close()
	metrics := newRecordingMetrics()
	p := New(WithDuplicateDetector(detector), WithMetrics(metrics))

	first, err := p.Process(context.Background(), "", []byte(pacs008))
	require.NoError(t, err)
	assert.Empty(t, first.Result.Warnings)

	second, err := p.Process(context.Background(), "", []byte(pacs008))
	require.NoError(t, err)
	assert.Equal(t, []string{"duplicate message id MSG-123"}, second.Result.Warnings)
	assert.Equal(t, message.StatusSuccess, second.Result.Status)
	assert.Equal(t, "ACCP", second.Response.Status)
	assert.Equal(t, 1, metrics.duplicates)
}

type failingDetector struct{}

func (failingDetector) Seen(context.Context, string) (bool, error) {
	return false, errors.New("redis unavailable")
}
func (failingDetector) Close() error { return nil }

func TestProcess_SideEffectFailuresAreLogged(t *testing.T) {
	sink := &recordingSink{err: errors.New("store down")}
	p := New(WithDuplicateDetector(failingDetector{}), WithSink(sink))

	o, err := p.Process(context.Background(), "", []byte(pacs008))
	require.NoError(t, err)
	assert.Equal(t, message.StatusSuccess, o.Result.Status)
	assert.Len(t, sink.outcomes, 1)
}

func TestProcess_UnsupportedFamily(t *testing.T) {
	p := New(WithSupportedMessages("pain.001", "pacs.004"))

	o, err := p.Process(context.Background(), "", []byte(pacs008))
	require.NoError(t, err)
	assert.Equal(t, []string{"unsupported message family pacs.008"}, o.Result.Warnings)
	assert.Equal(t, message.StatusSuccess, o.Result.Status)

	o, err = p.Process(context.Background(), "", []byte(pacs004))
	require.NoError(t, err)
	assert.Empty(t, o.Result.Warnings)
}

func TestProcess_TypeHint(t *testing.T) {
	p := New()

	o, err := p.Process(context.Background(), "pain.001.001.09", []byte(pacs008))
	require.NoError(t, err)
	assert.Equal(t, "pacs.008.001.08", o.Result.MessageType)
	require.Len(t, o.Result.Warnings, 1)
	assert.Contains(t, o.Result.Warnings[0], "pain.001.001.09")

	unknown := `<Document><Custom><Amt Ccy="EUR">1</Amt></Custom></Document>`
	o, err = p.Process(context.Background(), "", []byte(unknown))
	require.NoError(t, err)
	assert.Equal(t, message.UnknownType, o.Result.MessageType)
	assert.Equal(t, response.TypeMessageReject, o.Response.MessageType)
}

func TestProcess_CancelledContext(t *testing.T) {
	sink := &recordingSink{}
	p := New(WithSink(sink))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Process(ctx, "", []byte(pacs008))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sink.outcomes)
}

func TestValidate_NoResponseNoSideEffects(t *testing.T) {
	detector := reliability.NewMemoryDetector(time.Hour)
	defer detector.Close()
	sink := &recordingSink{}
	p := New(WithDuplicateDetector(detector), WithSink(sink))

	for i := 0; i < 2; i++ {
		o, err := p.Validate(context.Background(), "", []byte(pacs008))
		require.NoError(t, err)
		assert.Nil(t, o.Response)
		assert.Empty(t, o.Result.Warnings)
	}
	assert.Empty(t, sink.outcomes)
	assert.Equal(t, 0, detector.Len())
}

func TestValidate_SimplifiedProfile(t *testing.T) {
	text := strings.Replace(pacs008, `Ccy="EUR"`, `Ccy="SEK"`, 1)

	o, err := New().Validate(context.Background(), "", []byte(text))
	require.NoError(t, err)
	assert.Empty(t, o.Result.Errors)

	p := New(WithBusinessValidator(rules.New(rules.WithProfile(rules.ProfileSimplified))))
	o, err = p.Validate(context.Background(), "", []byte(text))
	require.NoError(t, err)
	require.Len(t, o.Result.Errors, 1)
	assert.Equal(t, message.KindInvalidValue, o.Result.Errors[0].Kind)
}

func TestProcess_CustomSchemas(t *testing.T) {
	resolver := func(string) (schema.Schema, error) { return nil, errors.New("schema store offline") }
	p := New(WithStructuralValidator(schema.NewValidator(resolver, nil)))

	o, err := p.Process(context.Background(), "", []byte(pacs008))
	require.NoError(t, err)
	require.Len(t, o.Result.Errors, 1)
	assert.Equal(t, message.CodeValidationError, o.Result.Errors[0].Code)
	assert.Equal(t, "DS02", o.Response.Reason)
}

func TestProcess_Concurrent(t *testing.T) {
	p := New()
	texts := []string{pacs008, pacs004, pain001NegativeAmount}

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(text string) {
			defer wg.Done()
			o, err := p.Process(context.Background(), "", []byte(text))
			if assert.NoError(t, err) {
				assert.NotEmpty(t, o.Response.Text)
			}
		}(texts[i%len(texts)])
	}
	wg.Wait()
}

func TestSinkFunc(t *testing.T) {
	var called bool
	p := New(WithSink(SinkFunc(func(_ context.Context, o *Outcome) error {
		called = o.Response != nil
		return nil
	})))

	_, err := p.Process(context.Background(), "", []byte(pacs004))
	require.NoError(t, err)
	assert.True(t, called)
}
