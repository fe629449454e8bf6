package portal

import (
	"encoding/json"
	"testing"
	"time"
)

func TestIDAcceptsNumbersAndStrings(t *testing.T) {
	var payload struct {
		A ID `json:"a"`
		B ID `json:"b"`
		C ID `json:"c"`
	}
	if err := json.Unmarshal([]byte(`{"a":17,"b":" 18 ","c":null}`), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.A != "17" || payload.B != "18" || payload.C != "" {
		t.Fatalf("unexpected ids: %+v", payload)
	}
	if n, ok := payload.A.Int(); !ok || n != 17 {
		t.Fatalf("Int()=%d,%v", n, ok)
	}
	var bad ID
	if err := json.Unmarshal([]byte(`{}`), &bad); err == nil {
		t.Fatal("expected object id to be rejected")
	}
}

func TestParseDate(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"Mar. 05, 2025", time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC), true},
		{"2025-03-05", time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC), true},
		{"TBD", time.Time{}, false},
		{"", time.Time{}, false},
		{"soon", time.Time{}, false},
	}
	for _, tc := range cases {
		got, ok := ParseDate(tc.in)
		if ok != tc.ok || !got.Equal(tc.want) {
			t.Fatalf("ParseDate(%q)=%v,%v want %v,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}
