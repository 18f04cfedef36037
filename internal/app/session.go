// Package app wires the store, filter engine, query compiler and pairing
// into a Session: one loaded store driven by one caller.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teerjk/VarSifter-sub000/internal/config"
	vserrors "github.com/teerjk/VarSifter-sub000/internal/errors"
	"github.com/teerjk/VarSifter-sub000/internal/filter"
	"github.com/teerjk/VarSifter-sub000/internal/ingest"
	"github.com/teerjk/VarSifter-sub000/internal/logging"
	"github.com/teerjk/VarSifter-sub000/internal/mask"
	"github.com/teerjk/VarSifter-sub000/internal/observability"
	"github.com/teerjk/VarSifter-sub000/internal/pairing"
	"github.com/teerjk/VarSifter-sub000/internal/query/compiler"
	"github.com/teerjk/VarSifter-sub000/internal/storage"
	"github.com/teerjk/VarSifter-sub000/internal/store"
)

// statsWindow bounds how long idle filter statistics are kept.
const statsWindow = 24 * time.Hour

// ErrNoStore is returned by operations that need a loaded store.
var ErrNoStore = vserrors.New(vserrors.ErrCategoryInternal, vserrors.CodeUnexpected, "no store loaded")

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger shared by every component.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		s.logger = logging.OrNop(logger)
	}
}

// WithStorage replaces the local storage rooted at cfg.Storage.BaseDir.
func WithStorage(fs storage.FileStorage) Option {
	return func(s *Session) {
		s.fs = fs
	}
}

// Session owns one store and the components that act on it.
type Session struct {
	cfg *config.Config

	// Shared components
	fs       storage.FileStorage
	logger   *zap.Logger
	stats    *observability.FilterStats
	loader   *ingest.Loader
	engine   *filter.Engine
	compiler *compiler.Compiler
	pairer   *pairing.Pairer

	mu   sync.Mutex
	st   *store.Store
	path string
}

// New creates a Session with the given configuration. No store is loaded.
func New(cfg *config.Config, opts ...Option) (*Session, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	s := &Session{
		cfg:    cfg,
		logger: zap.NewNop(),
		stats:  observability.NewFilterStats(statsWindow),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.fs == nil {
		s.fs = storage.NewLocalStorage(cfg.Storage.BaseDir)
	}

	s.loader = ingest.NewLoader(cfg, s.fs, ingest.WithLogger(s.logger))
	s.compiler = compiler.NewCompiler(cfg,
		compiler.WithLogger(s.logger.Named("query")),
		compiler.WithStats(s.stats))
	s.engine = filter.NewEngine(cfg, s.fs,
		filter.WithLogger(s.logger.Named("filter")),
		filter.WithStats(s.stats),
		filter.WithEvaluator(s.compiler))
	s.pairer = pairing.NewPairer(cfg, pairing.WithLogger(s.logger.Named("pairing")))
	return s, nil
}

// derive returns a session sharing every component of s but bound to st.
func (s *Session) derive(st *store.Store, path string) *Session {
	return &Session{
		cfg:      s.cfg,
		fs:       s.fs,
		logger:   s.logger,
		stats:    s.stats,
		loader:   s.loader,
		engine:   s.engine,
		compiler: s.compiler,
		pairer:   s.pairer,
		st:       st,
		path:     path,
	}
}

// Open loads path and makes it the session's store. A failed load leaves
// the previous store in place and returns the (usually fatal) error.
func (s *Session) Open(ctx context.Context, path string) error {
	st, err := s.loader.Load(ctx, path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.st, s.path = st, path
	s.logger.Info("store opened",
		zap.String("path", path),
		zap.String("store_id", st.ID().String()),
		zap.Int("rows", st.NumRows()),
		zap.Int("samples", len(st.Samples())))
	return nil
}

// Store returns the current store, or nil before Open.
func (s *Session) Store() *store.Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st
}

// Path returns the file the store was loaded from.
func (s *Session) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// Stats returns the filter and query statistics collected by this session.
func (s *Session) Stats() *observability.FilterStats { return s.stats }

func (s *Session) current() (*store.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st == nil {
		return nil, ErrNoStore
	}
	return s.st, nil
}

// Filter applies spec to the store and installs the resulting mask.
func (s *Session) Filter(ctx context.Context, spec filter.Spec) (*filter.Result, error) {
	st, err := s.current()
	if err != nil {
		return nil, err
	}
	return s.engine.Apply(ctx, st, spec)
}

// FilterRequest loads a filter request file and applies it.
func (s *Session) FilterRequest(ctx context.Context, path string) (*filter.Result, error) {
	req, err := filter.LoadRequest(path)
	if err != nil {
		return nil, err
	}
	return s.Filter(ctx, req.Spec(s.logger))
}

// Query evaluates a single expression and installs its mask. Unlike a filter
// spec with an expression, a failing query is returned as an error and the
// mask is left unchanged.
func (s *Session) Query(ctx context.Context, expr string) (*mask.Mask, error) {
	st, err := s.current()
	if err != nil {
		return nil, err
	}
	start := time.Now()
	m, err := s.compiler.Evaluate(ctx, st, expr)
	if err != nil {
		return nil, err
	}
	if err := st.SetMask(m); err != nil {
		return nil, err
	}
	s.stats.RecordCategory(filter.CategoryExpression, m.Count(), time.Since(start))
	s.stats.RecordRun(st.NumRows(), m.Count(), time.Since(start))
	return m, nil
}

// Reset clears any filter so every row is in view again.
func (s *Session) Reset() error {
	st, err := s.current()
	if err != nil {
		return err
	}
	st.ResetMask()
	return nil
}

// Pair groups the compound-record request against the rows in view.
func (s *Session) Pair(request string, withSamples bool) (*pairing.Result, error) {
	st, err := s.current()
	if err != nil {
		return nil, err
	}
	return s.pairer.Pair(st, request, withSamples)
}

// PairRow pairs using the linkage list stored on row.
func (s *Session) PairRow(row int, withSamples bool) (*pairing.Result, error) {
	st, err := s.current()
	if err != nil {
		return nil, err
	}
	request, ok := s.pairer.RequestForRow(st, row)
	if !ok {
		return nil, vserrors.Newf(vserrors.ErrCategoryPairing, vserrors.CodeMalformedLinkage,
			"row %d has no linkage list", row)
	}
	return s.pairer.Pair(st, request, withSamples)
}

// Export writes the store to path. With viewOnly only rows in view are
// written.
func (s *Session) Export(ctx context.Context, path string, viewOnly bool) (int, error) {
	st, err := s.current()
	if err != nil {
		return 0, err
	}
	n, err := ingest.Export(ctx, s.fs, st, path, viewOnly)
	if err != nil {
		return 0, err
	}
	fields := []zap.Field{zap.String("path", path), zap.Int("rows", n), zap.Bool("view_only", viewOnly)}
	if cs, ok := s.fs.(storage.Checksummer); ok {
		if sum, ok := cs.Checksum(path); ok {
			fields = append(fields, zap.String("md5", sum))
		}
	}
	s.logger.Info("store exported", fields...)
	return n, nil
}

// Subset returns a new session over a child store holding the rows in view.
// The child shares dictionaries with this store; masks are independent.
func (s *Session) Subset() (*Session, error) {
	st, err := s.current()
	if err != nil {
		return nil, err
	}
	child := st.SubsetMasked()
	s.logger.Info("subset created",
		zap.String("store_id", child.ID().String()),
		zap.String("parent_id", st.ID().String()),
		zap.Int("rows", child.NumRows()))
	return s.derive(child, s.Path()), nil
}
