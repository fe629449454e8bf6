package obs

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                 "/",
		"/job/student-jobs":                "/job/student-jobs",
		"/job/student-jobs?page=2":         "/job/student-jobs",
		"/job/17/register":                 "/job/:id/register",
		"/job/get-job/17":                  "/job/get-job/:id",
		"/placed/companies/3/students":     "/placed/companies/:id/students",
		"/reports/applied-students/42":     "/reports/applied-students/:id",
		"/auth/tpo/verify-otp":             "/auth/tpo/verify-otp",
		"/placements/get/01hz3k0v8x9q7d2m": "/placements/get/01hz3k0v8x9q7d2m",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}

func TestInstrumentCountsByCanonicalPath(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg, "test", "http")
	h := m.Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	for _, path := range []string{"/job/1/register", "/job/2/register"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
	}

	got := testutil.ToFloat64(m.Total().WithLabelValues(http.MethodPost, "/job/:id/register", "201"))
	if got != 2 {
		t.Fatalf("requests_total=%v, want 2", got)
	}
}

func TestBeginRecordsTransportFailure(t *testing.T) {
	m := NewHTTPMetrics(prometheus.NewRegistry(), "test", "client")
	m.Begin(http.MethodGet, "/auth/profile")(0)
	if got := testutil.ToFloat64(m.Total().WithLabelValues(http.MethodGet, "/auth/profile", "error")); got != 1 {
		t.Fatalf("error count=%v, want 1", got)
	}
}

func TestLogRespectsLevel(t *testing.T) {
	logger := Logger()
	original := logger.Writer()
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(original)
	defer SetLevel(LevelInfo)

	SetLevel(LevelWarn)
	Log(LevelInfo, "hidden", nil)
	if buf.Len() != 0 {
		t.Fatalf("expected info to be dropped, got %q", buf.String())
	}

	Log(LevelWarn, "shown", map[string]any{"path": "/auth/logout"})
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if entry["level"] != "warn" || entry["msg"] != "shown" || entry["path"] != "/auth/logout" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}
