package sessgate

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strings"
)

// PayloadKind identifies the decoded shape of a response body.
type PayloadKind int

const (
	// PayloadJSON holds a structured body (application/json and friends).
	PayloadJSON PayloadKind = iota
	// PayloadText holds a plain-text body (text/*).
	PayloadText
	// PayloadBinary holds an opaque body (everything else).
	PayloadBinary
)

// String returns a short name for the kind, used in logs and metrics labels.
func (k PayloadKind) String() string {
	switch k {
	case PayloadJSON:
		return "json"
	case PayloadText:
		return "text"
	case PayloadBinary:
		return "binary"
	}
	return "unknown"
}

// Payload is a response body classified once at the transport boundary.
// Exactly one field matching Kind is populated; downstream code switches on
// Kind instead of re-inspecting headers.
type Payload struct {
	Kind  PayloadKind
	JSON  json.RawMessage
	Text  string
	Bytes []byte
}

// Decode unmarshals a JSON payload into v. It fails for text and binary
// payloads rather than guessing.
func (p Payload) Decode(v interface{}) error {
	if p.Kind != PayloadJSON {
		return fmt.Errorf("sessgate: cannot decode %s payload into %T", p.Kind, v)
	}
	if len(p.JSON) == 0 {
		return nil
	}
	return json.Unmarshal(p.JSON, v)
}

// Raw returns the body bytes regardless of kind.
func (p Payload) Raw() []byte {
	switch p.Kind {
	case PayloadJSON:
		return p.JSON
	case PayloadText:
		return []byte(p.Text)
	}
	return p.Bytes
}

// Result is the uniform outcome of one network round trip. The executor
// produces a Result for every response it receives; only the public call
// surface turns a non-OK Result into an error.
type Result struct {
	Payload    Payload
	StatusCode int
	OK         bool
	Header     http.Header
}

// classifyPayload shapes body according to the declared content type.
func classifyPayload(contentType string, body []byte) Payload {
	mediaType := contentType
	if parsed, _, err := mime.ParseMediaType(contentType); err == nil {
		mediaType = parsed
	}
	switch {
	case mediaType == "application/json" || strings.HasSuffix(mediaType, "+json"):
		return Payload{Kind: PayloadJSON, JSON: json.RawMessage(body)}
	case strings.HasPrefix(mediaType, "text/"):
		return Payload{Kind: PayloadText, Text: string(body)}
	}
	return Payload{Kind: PayloadBinary, Bytes: body}
}
