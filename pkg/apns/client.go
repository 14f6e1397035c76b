package apns

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"sync"
	"sync/atomic"
)

// maxBodySize caps how much of an APNS response body is read.
const maxBodySize = 64 << 10

// Client sends one notification to a batch of devices over a single HTTP/2
// connection that is opened on the first Send and reused afterwards.
//
// Send calls on one Client are serialized.
type Client struct {
	env     Environment
	baseURL string
	logger  *slog.Logger
	debug   atomic.Bool

	cert       *tls.Certificate
	httpClient *http.Client

	mu sync.Mutex
}

type clientConfig struct {
	passphrase string
	logger     *slog.Logger
	httpClient *http.Client
	debug      bool
}

// Option configures a Client.
type Option func(*clientConfig)

// WithPassphrase unlocks an encrypted certificate key.
func WithPassphrase(passphrase string) Option {
	return func(c *clientConfig) {
		c.passphrase = passphrase
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = logger
	}
}

// WithHTTPClient supplies an already configured client. The certificate
// path is then ignored.
func WithHTTPClient(client *http.Client) Option {
	return func(c *clientConfig) {
		c.httpClient = client
	}
}

func WithDebug(debug bool) Option {
	return func(c *clientConfig) {
		c.debug = debug
	}
}

// New creates a Client for env authenticating with the certificate at
// certificatePath. No connection is made until the first Send.
func New(env Environment, certificatePath string, opts ...Option) (*Client, error) {
	if !env.valid() {
		return nil, fmt.Errorf("apns: unknown environment %d", int(env))
	}
	cfg := &clientConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}

	c := &Client{
		env:        env,
		baseURL:    env.BaseURL(),
		logger:     cfg.logger.With("component", "apns-client", "environment", env.String()),
		httpClient: cfg.httpClient,
	}
	c.debug.Store(cfg.debug)

	if c.httpClient == nil {
		if certificatePath == "" {
			return nil, fmt.Errorf("apns: certificate path is required")
		}
		cert, err := loadCertificate(certificatePath, cfg.passphrase)
		if err != nil {
			return nil, err
		}
		c.cert = &cert
	}
	return c, nil
}

// SetDebug toggles request tracing for subsequent requests.
func (c *Client) SetDebug(debug bool) *Client {
	c.debug.Store(debug)
	return c
}

// BaseURL is the device endpoint prefix requests are sent to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Environment reports the APNS environment the client targets.
func (c *Client) Environment() Environment {
	return c.env
}

// Send delivers msg to every device in order and returns one Response per
// device. Devices added after Send starts are not part of the batch.
// Failures of individual devices are reported in the Results; an error is
// returned only when nothing could be sent.
func (c *Client) Send(ctx context.Context, msg *Message, devices *Devices) (*Results, error) {
	if msg == nil {
		return nil, &ValidationError{Field: "message", Reason: "message is required"}
	}
	var snapshot []Device
	if devices != nil {
		snapshot = devices.All()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	hc, err := c.connection()
	if err != nil {
		return nil, err
	}
	if rt := roundTripper(hc); !supportsHTTP2(rt) {
		return nil, &NoHttp2SupportError{Transport: transportName(rt)}
	}

	results := newResults(len(snapshot))
	for _, device := range snapshot {
		results.append(c.send1(ctx, hc, msg, device))
	}
	c.logger.Debug("Batch sent", "devices", len(snapshot), "delivered", len(results.Delivered()))
	return results, nil
}

// Close releases idle connections. The Client may still be used afterwards;
// a new connection is opened on demand.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.httpClient != nil {
		c.httpClient.CloseIdleConnections()
	}
	return nil
}

// connection returns the shared client, building it on first use.
// Callers hold c.mu.
func (c *Client) connection() (*http.Client, error) {
	if c.httpClient != nil {
		return c.httpClient, nil
	}
	hc, err := clientWithCert(*c.cert)
	if err != nil {
		return nil, &NoHttp2SupportError{Transport: "*http.Transport", Err: err}
	}
	c.httpClient = hc
	return hc, nil
}

func roundTripper(hc *http.Client) http.RoundTripper {
	if hc.Transport == nil {
		return http.DefaultTransport
	}
	return hc.Transport
}

func (c *Client) send1(ctx context.Context, hc *http.Client, msg *Message, device Device) *Response {
	body, err := encodePayload(forDevice(msg.payload, device))
	if err != nil {
		return transportFailure(device.Token, fmt.Errorf("failed to encode payload: %w", err))
	}

	if c.debug.Load() {
		ctx = httptrace.WithClientTrace(ctx, debugTrace(c.logger, device.Token))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+url.PathEscape(device.Token), bytes.NewReader(body))
	if err != nil {
		return transportFailure(device.Token, err)
	}
	req.Header = msg.headers.Clone()

	resp, err := hc.Do(req)
	if err != nil {
		c.logger.Warn("Request failed", "token", device.Token, "err", err)
		return transportFailure(device.Token, err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		c.logger.Warn("Failed to read response body", "token", device.Token, "err", err)
	}
	r := Parse(device.Token, rawHeaderBlock(resp), rawBody)
	if c.debug.Load() {
		c.logger.Info("Got response", "token", device.Token, "status", r.StatusCode, "reason", r.Reason, "proto", resp.Proto)
	}
	return r
}

// rawHeaderBlock renders the status line and headers the way they arrived.
func rawHeaderBlock(resp *http.Response) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s %s\r\n", resp.Proto, resp.Status)
	_ = resp.Header.Write(&buf)
	buf.WriteString("\r\n")
	return buf.Bytes()
}
