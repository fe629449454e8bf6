package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"placecell.org/internal/apiclient"
	"placecell.org/internal/auth"
	"placecell.org/internal/config"
	"placecell.org/internal/obs"
	"placecell.org/internal/session"
)

var (
	errNeedsOfficer = errors.New("this command needs a placement officer account")
	errNeedsStudent = errors.New("this command needs a student account")
)

// app holds what every command shares: configuration, the persisted
// session and the portal client.
type app struct {
	configPath  string
	format      string
	baseURL     string
	metricsFile string

	in  *bufio.Reader
	out io.Writer

	cfg     *config.Config
	store   *session.Store
	client  *apiclient.Client
	reg     *prometheus.Registry
	closers []func() error
}

func newApp(in io.Reader, out io.Writer) *app {
	return &app{in: bufio.NewReader(in), out: out, format: formatTable}
}

func (a *app) setup(ctx context.Context) error {
	if a.client != nil {
		return nil
	}
	switch a.format {
	case formatTable, formatJSON, formatYAML:
	default:
		return fmt.Errorf("unknown output format %q", a.format)
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.baseURL != "" {
		cfg.BaseURL = a.baseURL
	}
	if a.metricsFile != "" {
		cfg.MetricsFile = a.metricsFile
	}
	a.cfg = cfg
	obs.SetLevel(obs.ParseLevel(cfg.LogLevel))

	storage, err := a.openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	store, err := session.New(storage)
	if err != nil {
		return err
	}

	a.reg = prometheus.NewRegistry()
	obs.RegisterBuildInfo(a.reg, "placecell", version, commit)
	client, err := apiclient.New(cfg.BaseURL,
		apiclient.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		apiclient.WithTokenSource(store),
		apiclient.WithRateLimit(cfg.RatePerSec, cfg.RateBurst),
		apiclient.WithMetrics(obs.NewHTTPMetrics(a.reg, "placecell", "client")),
		apiclient.WithUnauthorizedHandler(func(ctx context.Context) {
			obs.Log(obs.LevelWarn, "session rejected by portal, signing out", nil)
			if err := store.Logout(ctx); err != nil {
				obs.Log(obs.LevelError, "forced logout failed", map[string]any{"error": err.Error()})
			}
		}),
	)
	if err != nil {
		return err
	}
	store.SetInvalidator(client)
	if _, err := store.Restore(ctx); err != nil {
		return err
	}
	a.store, a.client = store, client
	return nil
}

func (a *app) openStorage(ctx context.Context, cfg *config.Config) (session.Storage, error) {
	switch cfg.SessionBackend {
	case config.BackendMemory:
		return session.NewMemoryStorage(), nil
	case config.BackendSQL:
		st, err := session.OpenSQL(cfg.SessionDSN, cfg.Profile)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, st.Close)
		if err := st.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return st, nil
	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		a.closers = append(a.closers, rdb.Close)
		return session.NewRedisStorage(rdb, cfg.RedisPrefix, cfg.Profile)
	default:
		return session.NewFileStorage(cfg.SessionPath)
	}
}

// close flushes metrics when configured and releases storage handles.
func (a *app) close() error {
	var errs []error
	if a.cfg != nil && a.cfg.MetricsFile != "" && a.reg != nil {
		if err := obs.WriteTextfile(a.cfg.MetricsFile, a.reg); err != nil {
			errs = append(errs, fmt.Errorf("write metrics: %w", err))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *app) principal() (auth.Principal, error) {
	p, err := a.store.Require()
	if err != nil {
		return auth.Principal{}, fmt.Errorf("%w: run `placecell login` first", err)
	}
	return p, nil
}

func (a *app) officer() (auth.Principal, error) {
	p, err := a.principal()
	if err != nil {
		return p, err
	}
	if !p.IsOfficer() {
		return p, errNeedsOfficer
	}
	return p, nil
}

func (a *app) student() (auth.Principal, error) {
	p, err := a.principal()
	if err != nil {
		return p, err
	}
	if p.IsOfficer() {
		return p, errNeedsStudent
	}
	return p, nil
}

// ctx tags the command context with the signed-in principal for audit lines.
func (a *app) ctx(ctx context.Context) context.Context {
	return a.store.Context(ctx)
}

// prompt reads one line, showing label first. A flag value wins when set.
func (a *app) prompt(label, current string) (string, error) {
	if current != "" {
		return current, nil
	}
	fmt.Fprint(a.out, label)
	line, err := a.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read %s: %w", strings.TrimSpace(strings.TrimSuffix(label, ": ")), err)
	}
	return strings.TrimSpace(line), nil
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
