package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirosfoundation/go-iso20022/pkg/compression"
)

// TLS version constants
const (
	TLS12 = tls.VersionTLS12
	TLS13 = tls.VersionTLS13
)

// HTTP headers exchanged with the simulator
const (
	HeaderMessageType      = "X-Message-Type"
	HeaderMessageID        = "X-Message-ID"
	HeaderProcessingStatus = "X-Processing-Status"
	HeaderProcessingTime   = "X-Processing-Time"
)

// ContentTypeXML is the media type of submitted and returned documents.
const ContentTypeXML = "application/xml; charset=utf-8"

// DefaultMaxResponseBytes bounds the response body read by the client.
const DefaultMaxResponseBytes = 10 << 20

// RecommendedTLS12CipherSuites are the suites offered when TLS 1.2 is negotiated.
var RecommendedTLS12CipherSuites = []uint16{
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
}

// HTTPSConfig contains HTTPS client/server configuration
type HTTPSConfig struct {
	MinTLSVersion   uint16
	MaxTLSVersion   uint16
	CipherSuites    []uint16
	Certificates    []tls.Certificate
	RootCAs         *x509.CertPool
	Timeout         time.Duration
	IdleConnTimeout time.Duration

	// InsecureSkipVerify disables server certificate checks, for local
	// simulators with self-signed certificates.
	InsecureSkipVerify bool

	// MaxResponseBytes bounds the decoded response body.
	MaxResponseBytes int64
}

// DefaultHTTPSConfig returns a default HTTPS configuration
func DefaultHTTPSConfig() *HTTPSConfig {
	return &HTTPSConfig{
		MinTLSVersion:    TLS12,
		MaxTLSVersion:    TLS13,
		CipherSuites:     RecommendedTLS12CipherSuites,
		Timeout:          30 * time.Second,
		IdleConnTimeout:  90 * time.Second,
		MaxResponseBytes: DefaultMaxResponseBytes,
	}
}

// TLSConfig builds the tls.Config shared by the client and the server.
func (c *HTTPSConfig) TLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion:         c.MinTLSVersion,
		MaxVersion:         c.MaxTLSVersion,
		CipherSuites:       c.CipherSuites,
		Certificates:       c.Certificates,
		RootCAs:            c.RootCAs,
		InsecureSkipVerify: c.InsecureSkipVerify,
	}
}

// StatusError is returned when the simulator answers with a non-200 status.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d: %s", e.StatusCode, string(e.Body))
}

// SubmitOptions controls one submission.
type SubmitOptions struct {
	// MessageType is sent as the type hint header when set.
	MessageType string
	// Compress gzips the request body.
	Compress bool
}

// SubmitResult is the simulator's answer to a submitted document.
type SubmitResult struct {
	StatusCode       int
	MessageID        string
	ProcessingStatus string
	ProcessingTime   string
	ContentType      string
	Body             []byte
}

// HTTPSClient submits documents to a simulator over HTTP(S).
type HTTPSClient struct {
	client     *http.Client
	config     *HTTPSConfig
	compressor *compression.Compressor
}

// NewHTTPSClient creates a new HTTPS client
func NewHTTPSClient(config *HTTPSConfig) *HTTPSClient {
	if config == nil {
		config = DefaultHTTPSConfig()
	}

	transport := &http.Transport{
		TLSClientConfig:     config.TLSConfig(),
		IdleConnTimeout:     config.IdleConnTimeout,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		// bodies are decoded explicitly so the size limit applies after decompression
		DisableCompression: true,
	}

	return &HTTPSClient{
		client: &http.Client{
			Transport: transport,
			Timeout:   config.Timeout,
		},
		config:     config,
		compressor: compression.NewCompressor(config.MaxResponseBytes),
	}
}

// Submit posts document to endpoint and returns the reply.
func (c *HTTPSClient) Submit(ctx context.Context, endpoint string, document []byte, opts SubmitOptions) (*SubmitResult, error) {
	body := document
	if opts.Compress {
		compressed, err := c.compressor.Compress(document)
		if err != nil {
			return nil, fmt.Errorf("failed to compress document: %w", err)
		}
		body = compressed
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", ContentTypeXML)
	req.Header.Set("Accept-Encoding", compression.EncodingGzip)
	req.Header.Set("User-Agent", "go-iso20022/1.0")
	if opts.Compress {
		req.Header.Set("Content-Encoding", compression.EncodingGzip)
	}
	if opts.MessageType != "" {
		req.Header.Set(HeaderMessageType, opts.MessageType)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := c.readBody(resp)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: responseBody}
	}

	return &SubmitResult{
		StatusCode:       resp.StatusCode,
		MessageID:        resp.Header.Get(HeaderMessageID),
		ProcessingStatus: resp.Header.Get(HeaderProcessingStatus),
		ProcessingTime:   resp.Header.Get(HeaderProcessingTime),
		ContentType:      resp.Header.Get("Content-Type"),
		Body:             responseBody,
	}, nil
}

func (c *HTTPSClient) readBody(resp *http.Response) ([]byte, error) {
	if compression.IsGzipEncoded(resp.Header.Get("Content-Encoding")) {
		body, err := c.compressor.DecompressReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}
		return body, nil
	}

	limit := c.config.MaxResponseBytes
	if limit <= 0 {
		limit = DefaultMaxResponseBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("failed to read response: %w", compression.ErrTooLarge)
	}
	return body, nil
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}
