// Package sessgate is the transport layer for talking to a
// cookie-authenticated, anti-forgery protected JSON backend:
//
//   - Anti-forgery token attached to every mutating request, with a
//     single-flight coordinator so concurrent callers share one token fetch
//   - Transparent one-shot session refresh and replay on authentication
//     failure (original call, one refresh, one replay — never more)
//   - Responses classified once at the boundary into JSON / text / binary
//   - One uniform error type for transport, HTTP and session failures
//     (status 0 reserved for "no response received")
//   - Prometheus metrics and an injectable lifecycle observer
//
// Design goals:
//   - Small surface area – functional options configure everything
//   - Coordination layers return results, never panic or raise; only the
//     public verbs convert a failed result into an error
//   - Safe concurrent use of a single *Client instance
//
// Typical usage:
//
//	client := sessgate.New("https://quotes.example.com",
//	    sessgate.WithMetrics(),
//	    sessgate.WithSimpleLogger(),
//	)
//	payload, err := client.Post(ctx, "/api/quotes", map[string]string{"customer_name": "Acme"})
//	if err != nil {
//	    if sessgate.IsSessionExpired(err) {
//	        // force logout
//	    }
//	    return err
//	}
//	var quote Quote
//	_ = payload.Decode(&quote)
//
// The library avoids opinionated logging: provide a Logger (e.g. via
// WithSimpleLogger or NewZerologAdapter) and enable debug flags selectively
// for insight without noise.
package sessgate
