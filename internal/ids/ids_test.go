package ids

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestRequestIDSortable(t *testing.T) {
	prev := RequestID()
	for i := 0; i < 100; i++ {
		next := RequestID()
		if next <= prev {
			t.Fatalf("ids not monotonic: %q then %q", prev, next)
		}
		prev = next
	}
}

func TestRequestTime(t *testing.T) {
	before := time.Now().Add(-time.Second)
	id := RequestID()
	ts, ok := RequestTime(id)
	if !ok {
		t.Fatalf("RequestTime(%q) failed", id)
	}
	if ts.Before(before) || ts.After(time.Now().Add(time.Second)) {
		t.Fatalf("unexpected timestamp %v", ts)
	}
	if _, ok := RequestTime("not-an-id"); ok {
		t.Fatal("expected garbage id to be rejected")
	}
}

func TestIdempotencyKey(t *testing.T) {
	a, b := IdempotencyKey(), IdempotencyKey()
	if a == b {
		t.Fatal("keys must differ")
	}
	if _, err := uuid.Parse(a); err != nil {
		t.Fatalf("key is not a uuid: %v", err)
	}
}
