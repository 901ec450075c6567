// Package recipegen synthesises recipes with a remote generateContent model:
// prompt building, the HTTP client, response parsing and a bounded generator.
package recipegen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
)

var (
	// ErrNoAPIKey is returned before any request is made.
	ErrNoAPIKey = errors.New("recipegen: no api key configured")
	// ErrTransport covers connect failures and non-200 responses.
	ErrTransport = errors.New("recipegen: transport failure")
	// ErrParse covers a malformed envelope or recipe payload.
	ErrParse = errors.New("recipegen: malformed response")
)

const (
	DefaultEndpoint        = "https://generativelanguage.googleapis.com/v1beta/models/gemini-pro:generateContent"
	DefaultTemperature     = 0.7
	DefaultMaxOutputTokens = 2048
	DefaultConnectTimeout  = 30 * time.Second
)

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type payload struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

// ClientOption configures the Client.
type ClientOption func(*Client)

func WithTemperature(t float64) ClientOption {
	return func(c *Client) { c.temperature = t }
}

func WithMaxOutputTokens(n int) ClientOption {
	return func(c *Client) { c.maxOutputTokens = n }
}

// WithConnectTimeout bounds dialing only; the overall call is bounded by the
// caller's context.
func WithConnectTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.http.Transport = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DialContext:         (&net.Dialer{Timeout: d}).DialContext,
			TLSHandshakeTimeout: d,
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// Client talks to a generateContent endpoint.
type Client struct {
	endpoint        string
	apiKey          string
	temperature     float64
	maxOutputTokens int
	http            *http.Client
	log             *log.Logger
}

func NewClient(endpoint, apiKey string, logger *log.Logger, opts ...ClientOption) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	c := &Client{
		endpoint:        endpoint,
		apiKey:          apiKey,
		temperature:     DefaultTemperature,
		maxOutputTokens: DefaultMaxOutputTokens,
		http:            &http.Client{},
		log:             logger,
	}
	WithConnectTimeout(DefaultConnectTimeout)(c)
	for _, o := range opts {
		o(c)
	}
	return c
}

// Result is delivered once on the channel returned by GenerateAsync.
type Result struct {
	Text string
	Err  error
}

// GenerateAsync issues the request on its own goroutine. The returned channel
// is buffered and always receives exactly one Result.
func (c *Client) GenerateAsync(ctx context.Context, prompt string) <-chan Result {
	out := make(chan Result, 1)
	if c.apiKey == "" {
		out <- Result{Err: ErrNoAPIKey}
		return out
	}
	go func() {
		text, err := c.do(ctx, prompt)
		out <- Result{Text: text, Err: err}
	}()
	return out
}

// Generate blocks until GenerateAsync resolves or ctx is done.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	select {
	case res := <-c.GenerateAsync(ctx, prompt):
		return res.Text, res.Err
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %w", ErrTransport, ctx.Err())
	}
}

func (c *Client) requestURL() (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("key", c.apiKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) do(ctx context.Context, prompt string) (string, error) {
	body := payload{
		Contents:         []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{Temperature: c.temperature, MaxOutputTokens: c.maxOutputTokens},
	}
	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("recipegen: marshal payload: %w", err)
	}
	target, err := c.requestURL()
	if err != nil {
		return "", fmt.Errorf("%w: bad endpoint: %w", ErrTransport, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("%w: create request: %w", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Printf("recipegen: request failed: %v", err)
		return "", fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %w", ErrTransport, err)
	}
	if resp.StatusCode != http.StatusOK {
		c.log.Printf("recipegen: API status=%d body=%s", resp.StatusCode, truncate(string(respBody), 512))
		return "", fmt.Errorf("%w: status %d", ErrTransport, resp.StatusCode)
	}

	text, err := extractText(respBody)
	if err != nil {
		c.log.Printf("recipegen: %v body=%s", err, truncate(string(respBody), 512))
		return "", err
	}
	return text, nil
}

// extractText pulls candidates[0].content.parts[0].text out of the envelope.
func extractText(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("%w: envelope is not json", ErrParse)
	}
	candidates := gjson.GetBytes(body, "candidates")
	if !candidates.IsArray() || len(candidates.Array()) == 0 {
		return "", fmt.Errorf("%w: no candidates", ErrParse)
	}
	parts := candidates.Array()[0].Get("content.parts")
	if !parts.IsArray() || len(parts.Array()) == 0 {
		return "", fmt.Errorf("%w: no content parts", ErrParse)
	}
	text := parts.Array()[0].Get("text")
	if text.Type != gjson.String || text.String() == "" {
		return "", fmt.Errorf("%w: empty text part", ErrParse)
	}
	return text.String(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
