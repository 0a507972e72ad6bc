package sessgate

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxResponseSize bounds response body reads.
const maxResponseSize = 32 * 1024 * 1024 // 32MB

// pendingCall is one logical call flowing through the executor. The encoded
// body is retained so the refresh coordinator can replay the call verbatim.
type pendingCall struct {
	method      string
	path        string
	header      http.Header
	body        []byte
	contentType string
	replayed    bool
}

// resolveURL turns a caller path into the absolute request URL.
func (c *Client) resolveURL(path string) string {
	dest := NormalizePath(path, c.proxyPrefix)
	if strings.HasPrefix(dest, "http://") || strings.HasPrefix(dest, "https://") {
		return dest
	}
	return c.baseURL + dest
}

// execute performs exactly one network round trip for call. It never returns
// an error for a non-success HTTP status; those come back as a Result with
// OK=false so the refresh coordinator can inspect them. A returned error is
// either a transport failure (CallError with StatusCode 0) or, in strict
// token mode, a token failure surfaced before any dispatch.
func (c *Client) execute(ctx context.Context, call *pendingCall) (Result, error) {
	dest := c.resolveURL(call.path)

	req, err := http.NewRequestWithContext(ctx, call.method, dest, bodyReader(call.body))
	if err != nil {
		return Result{}, c.transportError(call, fmt.Sprintf("building request failed: %v", err), err)
	}

	for key, values := range c.header {
		for _, v := range values {
			req.Header.Set(key, v)
		}
	}
	for key, values := range call.header {
		for _, v := range values {
			req.Header.Set(key, v)
		}
	}
	if call.body != nil && call.contentType != "" {
		req.Header.Set("Content-Type", call.contentType)
	}

	var requestID string
	if c.debug != nil && c.debug.Enabled && c.debug.RequestIDGen != nil {
		requestID = c.debug.RequestIDGen()
		req.Header.Set("X-Request-ID", requestID)
	}

	if isMutating(call.method) {
		token, shared, terr := c.tokens.Token(ctx)
		switch {
		case terr == nil:
			req.Header.Set(HeaderCSRFToken, token)
			if shared {
				c.emit(Event{Kind: EventTokenShared, Method: call.method, Path: call.path})
				if c.metrics != nil {
					c.metrics.RecordTokenShared()
				}
			}
		case c.strictTokens:
			c.emit(Event{Kind: EventTokenError, Method: call.method, Path: call.path, Err: terr})
			if c.metrics != nil {
				c.metrics.RecordError(ErrorTypeTokenUnavailable, call.method, call.path)
			}
			return Result{}, &CallError{
				Type:    ErrorTypeTokenUnavailable,
				Message: "anti-forgery token unavailable",
				Method:  call.method,
				Path:    call.path,
				Cause:   terr,
			}
		default:
			// Soft-fail: the backend is the final authority on whether the
			// header is mandatory for this route.
			c.emit(Event{Kind: EventTokenError, Method: call.method, Path: call.path, Err: terr})
			if c.debugEnabled() && c.debug.LogTokens {
				c.logger.Warn("Proceeding without anti-forgery token", "requestID", requestID, "error", terr.Error())
			}
			if c.metrics != nil {
				c.metrics.RecordTokenFetchFailure()
			}
		}
	}

	c.emit(Event{Kind: EventRequest, Method: call.method, Path: call.path, Replayed: call.replayed})
	if c.debugEnabled() && c.debug.LogRequests {
		c.logger.Debug("Dispatching request", "requestID", requestID, "method", call.method, "url", dest, "replayed", call.replayed)
	}

	start := time.Now()
	if c.metrics != nil {
		c.metrics.RecordRequestStart(call.method, call.path)
		defer c.metrics.RecordRequestEnd(call.method, call.path)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordRequest(call.method, call.path, 0, time.Since(start))
			c.metrics.RecordError(ErrorTypeTransport, call.method, call.path)
		}
		if c.debugEnabled() && c.debug.LogRequests {
			c.logger.Warn("Transport failure", "requestID", requestID, "method", call.method, "url", dest, "error", err.Error())
		}
		return Result{}, c.transportError(call, "no response received", err)
	}
	defer resp.Body.Close()

	payload, err := readPayload(resp)
	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordError(ErrorTypeTransport, call.method, call.path)
		}
		return Result{}, c.transportError(call, "reading response failed", err)
	}

	if c.metrics != nil {
		c.metrics.RecordRequest(call.method, call.path, resp.StatusCode, time.Since(start))
	}
	c.emit(Event{Kind: EventResponse, Method: call.method, Path: call.path, StatusCode: resp.StatusCode, Replayed: call.replayed})
	if c.debugEnabled() && c.debug.LogRequests {
		c.logger.Debug("Response received", "requestID", requestID, "method", call.method, "status", resp.StatusCode)
	}

	return Result{
		Payload:    payload,
		StatusCode: resp.StatusCode,
		OK:         resp.StatusCode >= 200 && resp.StatusCode < 300,
		Header:     resp.Header,
	}, nil
}

func (c *Client) transportError(call *pendingCall, message string, cause error) *CallError {
	return &CallError{
		Type:       ErrorTypeTransport,
		Message:    message,
		StatusCode: 0,
		Method:     call.method,
		Path:       call.path,
		Cause:      cause,
	}
}

// readPayload drains the response body (bounded) and classifies it by the
// declared content type. Header inspection happens here and nowhere else.
func readPayload(resp *http.Response) (Payload, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return Payload{}, err
	}
	return classifyPayload(resp.Header.Get("Content-Type"), body), nil
}

func bodyReader(body []byte) io.Reader {
	if body == nil {
		return nil
	}
	return bytes.NewReader(body)
}
