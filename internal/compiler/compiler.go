// Package compiler wires the pipeline's phases — import resolution,
// lexing, parsing, semantic analysis, and codegen — into the single
// entry point a CLI or test harness calls. context.Context is threaded
// only here, at the top level: no phase polls for cancellation
// mid-traversal, since none of chrispp's passes block on I/O or run
// long enough to need cooperative cancellation. Each phase boundary
// logs through zap and stops the pipeline early if diags.HasErrors(),
// so a later phase never sees a program an earlier phase rejected.
package compiler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gmofishsauce/chrispp/internal/codegen"
	"github.com/gmofishsauce/chrispp/internal/config"
	"github.com/gmofishsauce/chrispp/internal/diag"
	"github.com/gmofishsauce/chrispp/internal/importresolver"
	"github.com/gmofishsauce/chrispp/internal/ir"
	"github.com/gmofishsauce/chrispp/internal/sema"
)

// Result is everything a caller needs after a compile attempt: the
// generated, verified IR module (nil if any phase failed) and the
// diagnostics accumulated along the way, which may include warnings
// even on success.
type Result struct {
	Module *ir.Module
	Diags  *diag.Engine
}

// Compile runs the full pipeline over entryPath: resolve imports, lex,
// parse, analyze, and generate IR. It stops after the first phase that
// reports an error, so Result.Module is nil whenever
// Result.Diags.HasErrors() is true. The returned error is reserved for
// failures outside the diagnostic system itself — a missing file, a
// cancelled context, a structurally invalid generated module.
func Compile(ctx context.Context, entryPath string, opts *config.CompilerOptions, logger *zap.Logger) (*Result, error) {
	if opts == nil {
		opts = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("compiler: %w", err)
	}

	diags := diag.New()
	diags.SetMaxErrors(opts.MaxErrors)
	buildID := uuid.NewString()
	logger = logger.With(zap.String("build_id", buildID))

	resolveStart := time.Now()
	prog, err := importresolver.New(opts.ImportRoots, diags).Resolve(entryPath)
	if err != nil {
		return nil, fmt.Errorf("compiler: %w", err)
	}
	logger.Info("phase complete",
		zap.String("phase", "import"),
		zap.Int("decls", len(prog.Decls)),
		zap.Duration("elapsed", time.Since(resolveStart)),
	)
	if diags.HasErrors() {
		logger.Warn("pipeline stopped", zap.String("phase", "import"), zap.Int("errors", diags.ErrorCount()))
		return &Result{Diags: diags}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("compiler: %w", err)
	}

	semaStart := time.Now()
	semaRes := sema.Analyze(prog, diags)
	logger.Info("phase complete",
		zap.String("phase", "sema"),
		zap.Int("funcs", len(semaRes.Funcs)),
		zap.Int("externs", len(semaRes.Externs)),
		zap.Duration("elapsed", time.Since(semaStart)),
	)
	if diags.HasErrors() {
		logger.Warn("pipeline stopped", zap.String("phase", "sema"), zap.Int("errors", diags.ErrorCount()))
		return &Result{Diags: diags}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("compiler: %w", err)
	}

	genStart := time.Now()
	mod := codegen.Generate(semaRes, diags, buildID)
	logger.Info("phase complete",
		zap.String("phase", "codegen"),
		zap.Int("functions", len(mod.Functions)),
		zap.Duration("elapsed", time.Since(genStart)),
	)
	if diags.HasErrors() {
		logger.Warn("pipeline stopped", zap.String("phase", "codegen"), zap.Int("errors", diags.ErrorCount()))
		return &Result{Diags: diags}, nil
	}

	if err := ir.Verify(mod); err != nil {
		return nil, fmt.Errorf("compiler: generated module failed verification: %w", err)
	}

	return &Result{Module: mod, Diags: diags}, nil
}
