package sessgate

// EventKind identifies a point in the call lifecycle.
type EventKind int

const (
	// EventRequest fires before a round trip is dispatched.
	EventRequest EventKind = iota
	// EventResponse fires after a round trip resolved (any status).
	EventResponse
	// EventTokenFetch fires when an anti-forgery token fetch hits the network.
	EventTokenFetch
	// EventTokenShared fires when a caller was served from an in-flight or
	// cached token instead of fetching.
	EventTokenShared
	// EventTokenError fires when a token fetch fails.
	EventTokenError
	// EventRefresh fires before the session refresh endpoint is called.
	EventRefresh
	// EventRefreshError fires when the refresh attempt fails.
	EventRefreshError
	// EventReplay fires before the one-shot replay of the original call.
	EventReplay
)

// String returns a short name for the event kind.
func (k EventKind) String() string {
	switch k {
	case EventRequest:
		return "request"
	case EventResponse:
		return "response"
	case EventTokenFetch:
		return "token_fetch"
	case EventTokenShared:
		return "token_shared"
	case EventTokenError:
		return "token_error"
	case EventRefresh:
		return "refresh"
	case EventRefreshError:
		return "refresh_error"
	case EventReplay:
		return "replay"
	}
	return "unknown"
}

// Event describes one lifecycle point of a logical call.
type Event struct {
	Kind       EventKind
	Method     string
	Path       string
	StatusCode int
	Replayed   bool
	Err        error
}

// Observer receives call lifecycle events. It replaces ad hoc logging of the
// call flow: tests and metrics assert on events instead of printed output.
// Observers must be fast; they run inline on the calling goroutine.
type Observer func(Event)

func (c *Client) emit(ev Event) {
	if c.observer != nil {
		c.observer(ev)
	}
}
