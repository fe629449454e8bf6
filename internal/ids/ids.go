package ids

import (
	mathrand "math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// RequestID returns a sortable identifier sent as X-Request-ID on every portal call.
func RequestID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return strings.ToLower(ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String())
}

// RequestTime recovers the timestamp embedded in a request id.
func RequestTime(id string) (time.Time, bool) {
	parsed, err := ulid.ParseStrict(strings.ToUpper(strings.TrimSpace(id)))
	if err != nil {
		return time.Time{}, false
	}
	return ulid.Time(parsed.Time()).UTC(), true
}

// IdempotencyKey returns a random key for mutating requests the server may see twice.
func IdempotencyKey() string {
	return uuid.NewString()
}
