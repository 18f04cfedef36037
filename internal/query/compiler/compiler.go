// Package compiler turns a row predicate expression into a Module: a tree of
// closures bound to one store's schema that is evaluated once over every row.
//
// The vocabulary is closed. Identifiers name annotation columns or the
// per-row genotype constants; helper calls read sample cells and classify
// genotypes. No user text is ever turned into executable source.
package compiler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teerjk/VarSifter-sub000/internal/config"
	vserrors "github.com/teerjk/VarSifter-sub000/internal/errors"
	"github.com/teerjk/VarSifter-sub000/internal/logging"
	"github.com/teerjk/VarSifter-sub000/internal/mask"
	"github.com/teerjk/VarSifter-sub000/internal/observability"
	"github.com/teerjk/VarSifter-sub000/internal/query/parser"
	"github.com/teerjk/VarSifter-sub000/internal/store"
)

// cancelCheckInterval is how many rows are evaluated between context checks.
const cancelCheckInterval = 4096

// Option configures a Compiler.
type Option func(*Compiler)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Compiler) {
		c.logger = logging.OrNop(logger)
	}
}

// WithStats records every comparison of a compiled expression.
func WithStats(stats *observability.FilterStats) Option {
	return func(c *Compiler) {
		c.stats = stats
	}
}

// Compiler compiles and evaluates row predicate expressions. It holds no
// per-expression state and may be shared across stores.
type Compiler struct {
	cfg    *config.Config
	logger *zap.Logger
	stats  *observability.FilterStats
}

// NewCompiler creates a Compiler. The allele columns used by the genotype
// constants come from cfg.Columns.
func NewCompiler(cfg *config.Config, opts ...Option) *Compiler {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	c := &Compiler{cfg: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Module is one compiled expression bound to a store.
type Module struct {
	id     uuid.UUID
	source string
	st     *store.Store
	pred   func(row int) bool
	refs   []parser.Reference
}

// ID identifies this compilation in logs.
func (m *Module) ID() uuid.UUID { return m.id }

// Source returns the expression text the module was compiled from.
func (m *Module) Source() string { return m.source }

// References returns the comparisons found in the expression.
func (m *Module) References() []parser.Reference { return m.refs }

// Evaluate runs the predicate over every row of the store and returns the
// rows it accepts. A panic inside the predicate is returned as a
// RUNTIME_ERROR.
func (m *Module) Evaluate(ctx context.Context) (out *mask.Mask, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = vserrors.Newf(vserrors.ErrCategoryQuery, vserrors.CodeRuntimeError,
				"query %s failed: %v", m.id, r)
		}
	}()

	n := m.st.NumRows()
	out = mask.None(n)
	for row := 0; row < n; row++ {
		if row%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, vserrors.Wrap(vserrors.ErrCategoryQuery, vserrors.CodeRuntimeError,
					"query cancelled", err)
			}
		}
		if m.pred(row) {
			out.Set(row)
		}
	}
	return out, nil
}

// Compile parses expr and binds it to st. Syntax errors are PARSE_ERROR;
// unknown names, wrong argument types and unsupported operators are
// COMPILE_ERROR, UNKNOWN_COLUMN or UNKNOWN_SAMPLE.
func (c *Compiler) Compile(st *store.Store, expr string) (*Module, error) {
	ast, err := parser.Parse(expr)
	if err != nil {
		return nil, vserrors.Wrap(vserrors.ErrCategoryQuery, vserrors.CodeParseError,
			"cannot parse expression", err)
	}

	b := newBinder(st, c.cfg)
	op, err := b.compile(ast)
	if err != nil {
		return nil, err
	}
	pred, err := b.predicate(op, ast)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("expression compiled",
		zap.String("expression", expr),
		zap.Strings("columns", parser.Columns(ast)))

	return &Module{
		id:     uuid.New(),
		source: expr,
		st:     st,
		pred:   pred,
		refs:   parser.References(ast),
	}, nil
}

// Evaluate compiles expr against st, evaluates it once and returns the
// resulting mask. The store is not modified.
func (c *Compiler) Evaluate(ctx context.Context, st *store.Store, expr string) (*mask.Mask, error) {
	start := time.Now()
	m, err := c.Compile(st, expr)
	if err != nil {
		c.logger.Debug("query rejected", zap.String("expression", expr), zap.Error(err))
		return nil, err
	}
	logger := c.logger.With(zap.String("query_id", m.id.String()))

	if c.stats != nil {
		for _, ref := range m.refs {
			c.stats.RecordPredicate(ref.Column, operatorName(ref))
		}
	}

	out, err := m.Evaluate(ctx)
	if err != nil {
		logger.Warn("query evaluation failed", zap.Error(err))
		return nil, err
	}
	logger.Info("query evaluated",
		zap.String("expression", expr),
		zap.Int("rows", st.NumRows()),
		zap.Int("kept", out.Count()),
		zap.Duration("duration", time.Since(start)))
	return out, nil
}

func operatorName(ref parser.Reference) string {
	if ref.Not {
		return fmt.Sprintf("NOT %s", ref.Operator)
	}
	return ref.Operator
}
