package sessgate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/net/publicsuffix"
)

const defaultTimeout = 30 * time.Second

// Default endpoint paths, matching the backend's anti-forgery exempt routes.
const (
	DefaultTokenPath   = "/api/auth/csrf-token"
	DefaultRefreshPath = "/api/auth/refresh"
)

// Client is the transport layer for a cookie-authenticated, anti-forgery
// protected JSON backend. It attaches the anti-forgery token to mutating
// requests, coalesces concurrent token fetches into one, and transparently
// refreshes an expired session and replays the original call exactly once.
// It is safe for concurrent use.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	proxyPrefix  string
	tokenPath    string
	refreshPath  string
	strictTokens bool
	header       http.Header

	tokens   *tokenCoordinator
	logger   Logger
	debug    *DebugConfig
	metrics  *MetricsCollector
	observer Observer

	validationError error
}

// New constructs a Client using the provided functional options. A best
// effort validation is performed; call IsValid / ValidationError for errors.
func New(baseURL string, options ...Option) *Client {
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})

	client := &Client{
		httpClient: &http.Client{
			Timeout: defaultTimeout,
			Jar:     jar,
		},
		baseURL:     baseURL,
		proxyPrefix: DefaultProxyPrefix,
		tokenPath:   DefaultTokenPath,
		refreshPath: DefaultRefreshPath,
		header:      http.Header{},
	}

	for _, option := range options {
		option(client)
	}

	client.tokens = newTokenCoordinator(client.fetchToken)

	if err := client.ValidateConfiguration(); err != nil {
		client.validationError = err
	}

	return client
}

// InvalidateToken drops the cached anti-forgery token so the next mutating
// call fetches a fresh one.
func (c *Client) InvalidateToken() {
	c.tokens.Invalidate()
}

// Get performs a read; no anti-forgery token is attached.
func (c *Client) Get(ctx context.Context, path string, headers ...http.Header) (Payload, error) {
	return c.call(ctx, http.MethodGet, path, nil, headers)
}

// Post performs a create-style call with an optional JSON body.
func (c *Client) Post(ctx context.Context, path string, body interface{}, headers ...http.Header) (Payload, error) {
	return c.call(ctx, http.MethodPost, path, body, headers)
}

// Put performs a full-update call with an optional JSON body.
func (c *Client) Put(ctx context.Context, path string, body interface{}, headers ...http.Header) (Payload, error) {
	return c.call(ctx, http.MethodPut, path, body, headers)
}

// Patch performs a partial-update call with an optional JSON body.
func (c *Client) Patch(ctx context.Context, path string, body interface{}, headers ...http.Header) (Payload, error) {
	return c.call(ctx, http.MethodPatch, path, body, headers)
}

// Delete performs a delete call.
func (c *Client) Delete(ctx context.Context, path string, headers ...http.Header) (Payload, error) {
	return c.call(ctx, http.MethodDelete, path, nil, headers)
}

// Upload sends a multipart form with one file part named "file" plus any
// extra fields. Being mutating, it carries the anti-forgery token.
func (c *Client) Upload(ctx context.Context, path, filename string, file io.Reader, fields map[string]string, headers ...http.Header) (Payload, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return Payload{}, &CallError{Type: ErrorTypeEncoding, Message: "building multipart body failed", Method: http.MethodPost, Path: path, Cause: err}
	}
	if _, err := io.Copy(part, file); err != nil {
		return Payload{}, &CallError{Type: ErrorTypeEncoding, Message: "reading upload file failed", Method: http.MethodPost, Path: path, Cause: err}
	}
	for key, value := range fields {
		if err := w.WriteField(key, value); err != nil {
			return Payload{}, &CallError{Type: ErrorTypeEncoding, Message: "building multipart body failed", Method: http.MethodPost, Path: path, Cause: err}
		}
	}
	if err := w.Close(); err != nil {
		return Payload{}, &CallError{Type: ErrorTypeEncoding, Message: "building multipart body failed", Method: http.MethodPost, Path: path, Cause: err}
	}

	call := &pendingCall{
		method:      http.MethodPost,
		path:        path,
		header:      mergeHeaders(headers),
		body:        buf.Bytes(),
		contentType: w.FormDataContentType(),
	}
	return c.finish(ctx, call)
}

// Download issues a GET and streams the body to w. It returns the filename
// suggested by the server's Content-Disposition header, if any.
func (c *Client) Download(ctx context.Context, path string, w io.Writer, headers ...http.Header) (filename string, err error) {
	call := &pendingCall{
		method: http.MethodGet,
		path:   path,
		header: mergeHeaders(headers),
	}
	res, err := c.executeWithRefresh(ctx, call)
	if err != nil {
		return "", err
	}
	if !res.OK {
		return "", c.resultError(call, res)
	}
	if _, err := w.Write(res.Payload.Raw()); err != nil {
		return "", fmt.Errorf("sessgate: writing download: %w", err)
	}
	if cd := res.Header.Get("Content-Disposition"); cd != "" {
		if _, params, perr := mime.ParseMediaType(cd); perr == nil {
			filename = params["filename"]
		}
	}
	return filename, nil
}

// call is the single conversion point from Result to error: coordination in
// the layers below stays exception-free.
func (c *Client) call(ctx context.Context, method, path string, body interface{}, headers []http.Header) (Payload, error) {
	call := &pendingCall{
		method: method,
		path:   path,
		header: mergeHeaders(headers),
	}
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return Payload{}, &CallError{Type: ErrorTypeEncoding, Message: "encoding request body failed", Method: method, Path: path, Cause: err}
		}
		call.body = encoded
		call.contentType = "application/json"
	}

	return c.finish(ctx, call)
}

func (c *Client) finish(ctx context.Context, call *pendingCall) (Payload, error) {
	res, err := c.executeWithRefresh(ctx, call)
	if err != nil {
		return Payload{}, err
	}
	if !res.OK {
		return Payload{}, c.resultError(call, res)
	}
	return res.Payload, nil
}

// resultError builds the raised error for a non-success Result. A 401 that
// reaches this point has already survived (or been denied) the one-shot
// refresh, so it is terminal for the session.
func (c *Client) resultError(call *pendingCall, res Result) *CallError {
	errType := ErrorTypeHTTP
	message := fmt.Sprintf("server rejected the call with status %d", res.StatusCode)
	if res.StatusCode == http.StatusUnauthorized {
		errType = ErrorTypeSessionExpired
		message = "session expired and could not be renewed"
	}
	cerr := &CallError{
		Type:       errType,
		Message:    message,
		StatusCode: res.StatusCode,
		Body:       res.Payload.Raw(),
	}
	if call != nil {
		cerr.Method = call.method
		cerr.Path = call.path
	}
	return cerr
}

func mergeHeaders(headers []http.Header) http.Header {
	if len(headers) == 0 {
		return nil
	}
	merged := http.Header{}
	for _, h := range headers {
		for key, values := range h {
			for _, v := range values {
				merged.Set(key, v)
			}
		}
	}
	return merged
}

// IsValid reports whether configuration validation passed at construction.
func (c *Client) IsValid() bool {
	return c.validationError == nil
}

// ValidationError returns the configuration validation error, if any.
func (c *Client) ValidationError() error {
	return c.validationError
}
