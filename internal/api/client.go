// Package api is the HTTP client for the image generation service.
package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/schema"
)

// maxBody caps every response body read by the client.
const maxBody = 64 << 20

var encoder = func() *schema.Encoder {
	enc := schema.NewEncoder()
	enc.RegisterEncoder(float64(0), func(v reflect.Value) string {
		return strconv.FormatFloat(v.Float(), 'f', -1, 64)
	})
	return enc
}()

// ServerError is a failure reported by the service in the response body.
type ServerError struct {
	Op      string
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// IsServerError reports whether err carries a message from the service.
func IsServerError(err error) (*ServerError, bool) {
	var se *ServerError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

type Client struct {
	base   *url.URL
	http   *http.Client
	logger *log.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTimeout bounds every request made by the client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http = &http.Client{Timeout: d} }
}

// New returns a client for the service rooted at endpoint.
func New(endpoint string, opts ...Option) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid endpoint %q: scheme must be http or https", endpoint)
	}
	c := &Client{
		base:   u,
		http:   http.DefaultClient,
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Resolve turns an image reference returned by the service into an
// absolute URL. Absolute and data: references are returned unchanged.
func (c *Client) Resolve(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid image reference %q: %w", ref, err)
	}
	return c.base.ResolveReference(u).String(), nil
}

// Generate submits a generation request. A response with success=false is
// returned as a *ServerError.
func (c *Client) Generate(ctx context.Context, gr GenerationRequest) (*GenerateResponse, error) {
	var resp GenerateResponse
	if err := c.postForm(ctx, "generate", gr, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, &ServerError{Op: "generate", Message: resp.Error}
	}
	return &resp, nil
}

// ApplyFilter applies a filter to an image of a generation session and
// returns the reference of the filtered copy.
func (c *Client) ApplyFilter(ctx context.Context, fr FilterRequest) (string, error) {
	var resp FilterResponse
	if err := c.postForm(ctx, "apply_filter", fr, &resp); err != nil {
		return "", err
	}
	if !resp.Success {
		return "", &ServerError{Op: "apply filter", Message: resp.Error}
	}
	return resp.FilteredImage, nil
}

// TokenBalance returns the account's remaining tokens.
func (c *Client) TokenBalance(ctx context.Context) (float64, error) {
	body, err := c.get(ctx, "token_balance", nil)
	if err != nil {
		return 0, err
	}
	var resp tokenBalanceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("error unmarshaling JSON: %w", err)
	}
	if !resp.Success {
		return 0, &ServerError{Op: "token balance", Message: resp.Error}
	}
	return resp.TokenBalance, nil
}

// Download fetches a session image converted by the service.
func (c *Client) Download(ctx context.Context, dr DownloadRequest) ([]byte, error) {
	q := url.Values{}
	if err := encoder.Encode(dr, q); err != nil {
		return nil, fmt.Errorf("error encoding download request: %w", err)
	}
	return c.get(ctx, "download", q)
}

// Fetch downloads the bytes behind an image reference.
func (c *Client) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if strings.HasPrefix(ref, "data:") {
		return decodeDataURL(ref)
	}
	u, err := c.Resolve(ref)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	return c.do(req)
}

func (c *Client) endpoint(path string) string {
	return c.base.JoinPath(path).String()
}

func (c *Client) postForm(ctx context.Context, path string, src any, dst any) error {
	values := url.Values{}
	if err := encoder.Encode(src, values); err != nil {
		return fmt.Errorf("error encoding form: %w", err)
	}

	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	// stable field order keeps request bodies reproducible
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range values[k] {
			if err := writer.WriteField(k, v); err != nil {
				return fmt.Errorf("error writing form field %s: %w", k, err)
			}
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("error closing form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), body)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("API request", "path", path, "form", values.Encode())

	data, err := c.do(req)
	if err != nil {
		return err
	}
	c.logger.Debug("API response", "path", path, "body", string(data))
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("error unmarshaling JSON: %w", err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	u := c.endpoint(path)
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}
	if resp.StatusCode >= 300 && !isJSON(resp) {
		return nil, fmt.Errorf("%s %s: unexpected status %s: %s",
			req.Method, req.URL.Path, resp.Status, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func decodeDataURL(ref string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return nil, fmt.Errorf("unsupported data URL")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("error decoding data URL: %w", err)
	}
	return data, nil
}

// the service answers some failures with a JSON body and an error status;
// those are decoded so the message reaches the user.
func isJSON(resp *http.Response) bool {
	return strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json")
}
