package obs

import (
	"encoding/json"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Level orders log severities.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	default:
		return "error"
	}
}

// ParseLevel maps a config string onto a Level, defaulting to info.
func ParseLevel(raw string) Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

var (
	loggerOnce sync.Once
	logger     *log.Logger
	minLevel   atomic.Int32
)

func init() {
	minLevel.Store(int32(LevelInfo))
}

// Logger returns the shared structured logger. Lines go to stderr so command
// output on stdout stays machine readable.
func Logger() *log.Logger {
	loggerOnce.Do(func() {
		logger = log.New(os.Stderr, "", 0)
	})
	return logger
}

// SetOutput redirects the shared logger.
func SetOutput(w io.Writer) {
	Logger().SetOutput(w)
}

// SetLevel drops entries below lvl.
func SetLevel(lvl Level) {
	minLevel.Store(int32(lvl))
}

// Enabled reports whether entries at lvl are written.
func Enabled(lvl Level) bool {
	return int32(lvl) >= minLevel.Load()
}

// Log emits one JSON line with ts, level and msg plus the given fields.
func Log(lvl Level, msg string, fields map[string]any) {
	if !Enabled(lvl) {
		return
	}
	entry := make(map[string]any, len(fields)+3)
	for k, v := range fields {
		entry[k] = v
	}
	entry["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	entry["level"] = lvl.String()
	entry["msg"] = msg
	writeEntry(entry)
}

// LogRequest emits a debug line describing one outbound portal call.
func LogRequest(entry map[string]any) {
	Log(LevelDebug, "portal request", entry)
}

func writeEntry(entry map[string]any) {
	data, err := json.Marshal(entry)
	if err != nil {
		Logger().Println(`{"level":"error","msg":"log marshal failed"}`)
		return
	}
	Logger().Println(string(data))
}
