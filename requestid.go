package sessgate

import "github.com/oklog/ulid/v2"

// DefaultRequestIDGen returns a ULID string. ULIDs sort by creation time,
// which keeps correlated log lines in order on the server side.
func DefaultRequestIDGen() string {
	return ulid.Make().String()
}
