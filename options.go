package sessgate

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Option represents a configuration option
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client. The client should carry a cookie
// jar; the session cookie is the actual authentication credential and must
// ride along automatically.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the per-request timeout on the underlying HTTP client.
// Timeouts surface as transport failures (status 0) like any other failure
// to receive a response.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if c.httpClient != nil {
			c.httpClient.Timeout = d
		}
	}
}

// WithProxyPrefix sets the prefix prepended to bare (non-rooted) paths.
func WithProxyPrefix(prefix string) Option {
	return func(c *Client) {
		c.proxyPrefix = prefix
	}
}

// WithTokenEndpoint overrides the anti-forgery token endpoint path.
func WithTokenEndpoint(path string) Option {
	return func(c *Client) {
		c.tokenPath = path
	}
}

// WithRefreshEndpoint overrides the session refresh endpoint path.
func WithRefreshEndpoint(path string) Option {
	return func(c *Client) {
		c.refreshPath = path
	}
}

// WithStrictTokens makes a failed anti-forgery token fetch a hard failure
// surfaced before the network call, instead of the default soft-fail that
// dispatches without the header. Use against backends that reject every
// bare mutating request.
func WithStrictTokens() Option {
	return func(c *Client) {
		c.strictTokens = true
	}
}

// WithHeader adds a default header sent on every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.header.Set(key, value)
	}
}

// WithLogger sets a custom logger for debug output
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithSimpleLogger enables debug logging with a simple console logger
func WithSimpleLogger() Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
		c.logger = NewSimpleLogger()
	}
}

// WithDebug enables debug logging with the default configuration
func WithDebug() Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
	}
}

// WithDebugConfig sets custom debug configuration
func WithDebugConfig(config *DebugConfig) Option {
	return func(c *Client) {
		c.debug = config
	}
}

// WithRequestIDGenerator sets a custom function for generating request IDs
func WithRequestIDGenerator(gen func() string) Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.RequestIDGen = gen
	}
}

// WithMetrics enables Prometheus metrics on the default registerer.
func WithMetrics() Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector sets a pre-built metrics collector.
func WithMetricsCollector(mc *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = mc
	}
}

// WithObserver sets the call lifecycle hook.
func WithObserver(fn Observer) Option {
	return func(c *Client) {
		c.observer = fn
	}
}

// ValidateConfiguration validates the client configuration and returns an error if invalid
func (c *Client) ValidateConfiguration() error {
	var errors []string

	errors = append(errors, c.validateEndpointConfig()...)
	errors = append(errors, c.validateDebugConfig()...)
	errors = append(errors, c.validateHTTPClientConfig()...)

	if len(errors) > 0 {
		return &CallError{
			Type:    ErrorTypeValidation,
			Message: "configuration validation failed",
			Cause:   fmt.Errorf("validation errors: %v", errors),
		}
	}

	return nil
}

// validateEndpointConfig validates URL and path configuration
func (c *Client) validateEndpointConfig() []string {
	var errors []string

	if c.baseURL == "" {
		errors = append(errors, "baseURL must not be empty")
	} else if parsed, err := url.Parse(c.baseURL); err != nil || parsed.Scheme == "" || parsed.Host == "" {
		errors = append(errors, "baseURL must be an absolute URL")
	} else if strings.HasSuffix(c.baseURL, "/") {
		errors = append(errors, "baseURL must not end with a slash")
	}

	if !strings.HasPrefix(c.proxyPrefix, "/") || !strings.HasSuffix(c.proxyPrefix, "/") {
		errors = append(errors, "proxyPrefix must start and end with a slash")
	}

	if !strings.HasPrefix(c.tokenPath, "/") {
		errors = append(errors, "tokenPath must be site-rooted")
	}

	if !strings.HasPrefix(c.refreshPath, "/") {
		errors = append(errors, "refreshPath must be site-rooted")
	}

	return errors
}

// validateDebugConfig validates debug configuration
func (c *Client) validateDebugConfig() []string {
	var errors []string

	if c.debug != nil && c.debug.Enabled {
		if c.debug.RequestIDGen == nil {
			errors = append(errors, "debug RequestIDGen must be set when debug is enabled")
		}
		if c.logger == nil {
			errors = append(errors, "logger must be set when debug is enabled")
		}
	}

	return errors
}

// validateHTTPClientConfig validates the underlying HTTP client
func (c *Client) validateHTTPClientConfig() []string {
	var errors []string

	if c.httpClient == nil {
		errors = append(errors, "httpClient must not be nil")
	} else {
		if c.httpClient.Timeout < 0 {
			errors = append(errors, "timeout must be non-negative")
		}
		if c.httpClient.Jar == nil {
			errors = append(errors, "httpClient must carry a cookie jar for the session cookie")
		}
	}

	return errors
}
