// Package processor runs ISO 20022 documents through the parse, validate
// and respond pipeline.
package processor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sirosfoundation/go-iso20022/pkg/message"
	"github.com/sirosfoundation/go-iso20022/pkg/parser"
	"github.com/sirosfoundation/go-iso20022/pkg/reliability"
	"github.com/sirosfoundation/go-iso20022/pkg/response"
	"github.com/sirosfoundation/go-iso20022/pkg/rules"
	"github.com/sirosfoundation/go-iso20022/pkg/schema"
)

// Outcome is everything known about one processed message.
type Outcome struct {
	Context    *message.Context
	Result     *message.ProcessingResult
	Response   *response.Response // nil when only validated
	ReceivedAt time.Time
}

// Metrics receives pipeline observations.
type Metrics interface {
	MessageProcessed(family string, status message.Status, elapsed time.Duration)
	ValidationError(kind message.ErrorKind)
	ParseFailure()
	Duplicate()
}

// Sink receives every processed outcome, e.g. to persist or publish it.
type Sink interface {
	Handle(ctx context.Context, o *Outcome) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, o *Outcome) error

func (f SinkFunc) Handle(ctx context.Context, o *Outcome) error {
	return f(ctx, o)
}

// Option configures a Processor.
type Option func(*Processor)

// WithParser replaces the default parser.
func WithParser(p *parser.Parser) Option {
	return func(pr *Processor) {
		pr.parser = p
	}
}

// WithStructuralValidator replaces the structural validator. A nil
// validator disables structural validation.
func WithStructuralValidator(v *schema.Validator) Option {
	return func(pr *Processor) {
		pr.structural = v
	}
}

// WithBusinessValidator replaces the business rule validator.
func WithBusinessValidator(v *rules.Validator) Option {
	return func(pr *Processor) {
		pr.business = v
	}
}

// WithGenerator replaces the response generator.
func WithGenerator(g *response.Generator) Option {
	return func(pr *Processor) {
		pr.generator = g
	}
}

// WithDuplicateDetector enables duplicate message id warnings.
func WithDuplicateDetector(d reliability.Detector) Option {
	return func(pr *Processor) {
		pr.duplicates = d
	}
}

// WithMetrics sets the metrics receiver.
func WithMetrics(m Metrics) Option {
	return func(pr *Processor) {
		pr.metrics = m
	}
}

// WithSink adds an outcome sink. Sinks run in the order added.
func WithSink(s Sink) Option {
	return func(pr *Processor) {
		if s != nil {
			pr.sinks = append(pr.sinks, s)
		}
	}
}

// WithSupportedMessages limits the families processed without a warning.
// Entries are family prefixes such as "pacs.008". An empty list supports
// every family.
func WithSupportedMessages(prefixes ...string) Option {
	return func(pr *Processor) {
		pr.supported = nil
		for _, p := range prefixes {
			if f := message.Classify(p); f.Known() {
				if pr.supported == nil {
					pr.supported = make(map[message.Family]bool)
				}
				pr.supported[f] = true
			}
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(pr *Processor) {
		if logger != nil {
			pr.logger = logger
		}
	}
}

// Processor runs the pipeline. It is safe for concurrent use; messages are
// processed independently.
type Processor struct {
	parser     *parser.Parser
	structural *schema.Validator
	business   *rules.Validator
	generator  *response.Generator
	duplicates reliability.Detector
	metrics    Metrics
	sinks      []Sink
	supported  map[message.Family]bool
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a processor. Without options it parses with default limits,
// validates against the embedded schemas with the standard rule profile
// and has no side effects.
func New(opts ...Option) *Processor {
	pr := &Processor{
		logger: slog.Default(),
		now:    time.Now,
	}
	pr.parser = parser.New(parser.WithLogger(pr.logger))
	pr.structural = schema.NewValidator(schema.EmbeddedResolver(), pr.logger)
	pr.business = rules.New(rules.WithLogger(pr.logger))
	pr.generator = response.New(response.WithLogger(pr.logger))

	for _, opt := range opts {
		opt(pr)
	}
	if pr.metrics == nil {
		pr.metrics = nopMetrics{}
	}
	return pr
}

// Process parses text, validates it and generates the reply document.
// Parsing failures and validator contract violations are returned as errors
// and produce no reply. Failures of duplicate detection, metrics and sinks
// are logged and never fail processing.
func (p *Processor) Process(ctx context.Context, hint string, text []byte) (*Outcome, error) {
	o, err := p.run(ctx, hint, text, true)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, err := p.generator.Build(o.Context, o.Result)
	if err != nil {
		return nil, fmt.Errorf("generating response: %w", err)
	}
	o.Response = resp

	p.observe(o)
	for _, s := range p.sinks {
		if err := s.Handle(ctx, o); err != nil {
			p.logger.Warn("outcome sink failed",
				"message_id", o.Context.MessageID,
				"error", err,
			)
		}
	}
	return o, nil
}

// Validate parses and validates text without generating a reply. It
// neither records the message id for duplicate detection nor runs sinks.
func (p *Processor) Validate(ctx context.Context, hint string, text []byte) (*Outcome, error) {
	o, err := p.run(ctx, hint, text, false)
	if err != nil {
		return nil, err
	}
	p.observe(o)
	return o, nil
}

func (p *Processor) run(ctx context.Context, hint string, text []byte, trackDuplicates bool) (*Outcome, error) {
	start := p.now()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mc, err := p.parser.ParseWithHint(text, hint)
	if err != nil {
		p.metrics.ParseFailure()
		p.logger.Warn("message parsing failed", "error", err)
		return nil, fmt.Errorf("parsing message: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	structural, business, err := p.validate(mc)
	if err != nil {
		return nil, err
	}

	warnings := p.warnings(ctx, mc, trackDuplicates)
	result := Aggregate(mc, structural, business, warnings, p.now().Sub(start))

	return &Outcome{
		Context:    mc,
		Result:     result,
		ReceivedAt: start,
	}, nil
}

// validate runs both validators concurrently.
func (p *Processor) validate(mc *message.Context) (structural, business []message.ValidationError, err error) {
	var g errgroup.Group
	if p.structural != nil {
		g.Go(func() error {
			errs, err := p.structural.Validate(mc)
			if err != nil {
				return fmt.Errorf("structural validation: %w", err)
			}
			structural = errs
			return nil
		})
	}
	g.Go(func() error {
		errs, err := p.business.Validate(mc)
		if err != nil {
			return fmt.Errorf("business validation: %w", err)
		}
		business = errs
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return structural, business, nil
}

func (p *Processor) warnings(ctx context.Context, mc *message.Context, trackDuplicates bool) []string {
	var warnings []string

	if p.supported != nil && !p.supported[mc.Family()] {
		warnings = append(warnings, fmt.Sprintf("unsupported message family %s", mc.Family().Prefix()))
	}

	if mismatch := mc.Property(message.PropTypeHintMismatch); mismatch != "" {
		warnings = append(warnings, fmt.Sprintf("message type hint %s does not match document type %s", mismatch, mc.MessageType))
	}

	if trackDuplicates && p.duplicates != nil {
		dup, err := p.duplicates.Seen(ctx, mc.MessageID)
		if err != nil {
			p.logger.Warn("duplicate detection failed",
				"message_id", mc.MessageID,
				"error", err,
			)
		} else if dup {
			p.metrics.Duplicate()
			warnings = append(warnings, fmt.Sprintf("duplicate message id %s", mc.MessageID))
		}
	}
	return warnings
}

func (p *Processor) observe(o *Outcome) {
	r := o.Result
	p.metrics.MessageProcessed(o.Context.Family().Prefix(), r.Status, r.ProcessingTime)
	for _, e := range r.Errors {
		p.metrics.ValidationError(e.Kind)
	}

	attrs := []any{
		"message_id", r.MessageID,
		"message_type", r.MessageType,
		"status", r.Status.String(),
		"processing_time_ms", r.ProcessingTime.Milliseconds(),
		"errors", len(r.Errors),
		"warnings", len(r.Warnings),
	}
	if o.Response != nil {
		attrs = append(attrs, "response_id", o.Response.ID)
	}
	p.logger.Info("message processed", attrs...)
}

type nopMetrics struct{}

func (nopMetrics) MessageProcessed(string, message.Status, time.Duration) {}
func (nopMetrics) ValidationError(message.ErrorKind)                     {}
func (nopMetrics) ParseFailure()                                         {}
func (nopMetrics) Duplicate()                                            {}
