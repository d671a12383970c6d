package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/otherjamesbrown/penf-ner/config"
	"github.com/otherjamesbrown/penf-ner/credentials"
	"github.com/otherjamesbrown/penf-ner/pkg/db"
	"github.com/otherjamesbrown/penf-ner/pkg/kb"
	"github.com/otherjamesbrown/penf-ner/pkg/lang"
	"github.com/otherjamesbrown/penf-ner/pkg/logging"
	"github.com/otherjamesbrown/penf-ner/pkg/matcher"
	"github.com/otherjamesbrown/penf-ner/pkg/mentions/resolver"
	"github.com/otherjamesbrown/penf-ner/pkg/observability"
)

// ServiceName identifies this program in logs, traces and /version.
const ServiceName = "penf-ner"

// versionsFile is shipped next to a dictionary and names the KB it was built from.
const versionsFile = "VERSIONS.json"

// Runtime holds a connected knowledge base and a recognizer over it.
// Close must be called on every path.
type Runtime struct {
	Config     *config.Config
	Logger     logging.Logger
	Registry   *prometheus.Registry
	Metrics    *observability.Metrics
	Handle     *kb.Handle
	Recognizer *resolver.Recognizer

	closers []func() error
}

// Close releases the knowledge base and any cache client.
func (r *Runtime) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

// RuntimeFactory builds a Runtime. Commands take one so tests can swap it.
type RuntimeFactory func(ctx context.Context, cfg *config.Config, logger logging.Logger) (*Runtime, error)

// NewRuntime connects the configured knowledge base and builds a recognizer.
func NewRuntime(ctx context.Context, cfg *config.Config, logger logging.Logger) (*Runtime, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	reg := prometheus.NewRegistry()
	rt := &Runtime{
		Config:   cfg,
		Logger:   logger,
		Registry: reg,
		Metrics:  observability.NewMetrics(reg),
	}

	handle, err := rt.connectKB(ctx, rt.Metrics)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Handle = handle
	rt.closers = append(rt.closers, handle.Close)

	language, err := lang.Lookup(cfg.Language)
	if err != nil {
		rt.Close()
		return nil, err
	}
	m, err := newMatcher(cfg, language)
	if err != nil {
		rt.Close()
		return nil, err
	}

	rc := cfg.ResolverConfig()
	rc.Heartbeat = func(pass string) {
		logger.Debug("Pass started", logging.F("pass", pass))
	}
	rec, err := resolver.NewRecognizer(rc, resolver.Deps{
		KB:       handle.KB,
		Language: language,
		Matcher:  m,
		Logger:   logger,
		Metrics:  rt.Metrics,
		Tracer:   observability.NewTracer(),
	})
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Recognizer = rec
	return rt, nil
}

// connectKB opens the configured backend. A nil metrics leaves the knowledge
// base unwrapped.
func (r *Runtime) connectKB(ctx context.Context, metrics *observability.Metrics) (*kb.Handle, error) {
	cfg := r.Config
	ctx, span := observability.NewTracer().StartKBConnectSpan(ctx, cfg.KB.Backend)
	defer span.End()

	opener, err := r.opener(ctx, metrics)
	if err != nil {
		return nil, err
	}

	expected, err := expectedVersion(cfg)
	if err != nil {
		return nil, err
	}

	handle, err := kb.Connect(ctx, opener, kb.ConnectOptions{
		Timeout:         cfg.KB.ConnectTimeout,
		PollInterval:    cfg.KB.PollInterval,
		ExpectedVersion: expected,
		Logger:          r.Logger,
	})
	if err != nil {
		observability.NewSpanHelper(span).SetError(err, "KB_CONNECT")
		return nil, err
	}
	observability.NewSpanHelper(span).SetKBVersion(handle.Version())
	return handle, nil
}

func (r *Runtime) opener(ctx context.Context, metrics *observability.Metrics) (kb.OpenFunc, error) {
	cfg := r.Config
	path, err := cfg.ResolvePath(cfg.KB.Path)
	if err != nil {
		return nil, err
	}
	if cfg.KB.Backend != kb.BackendPostgres && path == "" {
		return nil, fmt.Errorf("kb.path is required for the %s backend", cfg.KB.Backend)
	}

	oc := kb.OpenerConfig{
		Backend: cfg.KB.Backend,
		Path:    path,
		Metrics: metrics,
	}
	if r.Registry != nil {
		oc.Registerer = r.Registry
	}

	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		r.closers = append(r.closers, client.Close)
		cache := kb.NewRedisNameCache(client, cfg.Redis.Prefix, cfg.Redis.TTL)
		oc.Options = append(oc.Options, kb.WithNameCache(ctx, cache, func(err error) {
			r.Logger.Warn("Name index cache unavailable", logging.Err(err))
		}))
	}

	if cfg.KB.Backend == kb.BackendPostgres {
		pg, err := postgresConfig(cfg, r.Logger)
		if err != nil {
			return nil, err
		}
		oc.Postgres = pg
	}

	return kb.NewOpener(oc)
}

func postgresConfig(cfg *config.Config, logger logging.Logger) (*db.Config, error) {
	pg := cfg.PostgresDBConfig("")
	source, err := credentials.ApplyPassword(credentials.DefaultStore(), pg)
	if err != nil {
		if !errors.Is(err, credentials.ErrKeyringUnavailable) {
			return nil, err
		}
		logger.Warn("Keyring unavailable, connecting without a password", logging.Err(err))
	}
	if source != "" {
		logger.Debug("Database password found", logging.F("source", source))
	}
	return pg, nil
}

// expectedVersion prefers the configured version, then VERSIONS.json next to
// the dictionary.
func expectedVersion(cfg *config.Config) (string, error) {
	if cfg.KB.ExpectedVersion != "" {
		return cfg.KB.ExpectedVersion, nil
	}
	if cfg.Matcher.Dictionary == "" {
		return "", nil
	}
	dict, err := cfg.ResolvePath(cfg.Matcher.Dictionary)
	if err != nil {
		return "", err
	}
	path := filepath.Join(filepath.Dir(dict), versionsFile)
	if _, err := os.Stat(path); err != nil {
		return "", nil
	}
	v, err := kb.ReadVersionsFile(path)
	if err != nil {
		return "", err
	}
	return v.KB, nil
}

// newMatcher builds the external matcher when a command is configured,
// otherwise the in-memory dictionary with the language's pronouns. Lowercase
// matching loads a lowercase dictionary.
func newMatcher(cfg *config.Config, language lang.Language) (matcher.Matcher, error) {
	if cfg.Matcher.Command != "" {
		return matcher.NewExternal(cfg.Matcher.Command)
	}
	file := cfg.Matcher.Dictionary
	load := matcher.LoadDictionary
	if cfg.Lowercase {
		load = matcher.LoadLowercaseDictionary
		if cfg.Matcher.LowercaseDictionary != "" {
			file = cfg.Matcher.LowercaseDictionary
		}
	}
	if file == "" {
		return nil, fmt.Errorf("no matcher configured: set matcher.dictionary or matcher.command")
	}
	path, err := cfg.ResolvePath(file)
	if err != nil {
		return nil, err
	}
	d, err := load(path)
	if err != nil {
		return nil, err
	}
	d.AddPronouns(language.Pronouns())
	return d, nil
}

// baseKB strips metrics instrumentation.
func baseKB(k kb.KnowledgeBase) kb.KnowledgeBase {
	if i, ok := k.(*kb.Instrumented); ok {
		return i.KnowledgeBase
	}
	return k
}
