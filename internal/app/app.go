package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"codeassist/internal/alert"
	"codeassist/internal/prompt"
	"codeassist/internal/util"
	"codeassist/pkg/ai"
)

// Config holds runtime dependencies for the core application.
type Config struct {
	Generator ai.TextGenerator
	// Alerter is optional.
	Alerter *alert.FailureAlerter
}

// App turns code into prompts and resolves each with one upstream call.
// It holds no per-request state.
type App struct {
	generator ai.TextGenerator
	alerter   *alert.FailureAlerter
	pending   sync.WaitGroup
}

// New constructs the application.
func New(cfg Config) (*App, error) {
	if cfg.Generator == nil {
		return nil, fmt.Errorf("text generator required")
	}
	return &App{generator: cfg.Generator, alerter: cfg.Alerter}, nil
}

// Explain asks the model to explain code in detail.
func (a *App) Explain(ctx context.Context, code string) (string, error) {
	if code == "" {
		return "", ErrCodeRequired
	}
	return a.generate(ctx, prompt.KindExplain, prompt.Build(prompt.KindExplain, code, ""))
}

// Debug asks the model to list bugs in code and suggest fixes.
func (a *App) Debug(ctx context.Context, code string) (string, error) {
	if code == "" {
		return "", ErrCodeRequired
	}
	return a.generate(ctx, prompt.KindDebug, prompt.Build(prompt.KindDebug, code, ""))
}

// Simplify asks the model, as a language expert, for simplified code followed
// by an explanation. The reply is returned as-is.
func (a *App) Simplify(ctx context.Context, code, language string) (string, error) {
	if code == "" {
		return "", ErrCodeRequired
	}
	if language == "" {
		return "", ErrLanguageRequired
	}
	return a.generate(ctx, prompt.KindSimplify, prompt.Build(prompt.KindSimplify, code, language))
}

// generate makes exactly one upstream call. A caller that goes away does not
// cancel a call already in flight.
func (a *App) generate(ctx context.Context, kind prompt.Kind, userPrompt string) (string, error) {
	ctx = context.WithoutCancel(ctx)
	logger := util.LoggerFromContext(ctx).With("operation", string(kind))

	logger.Info("generating", "prompt_bytes", len(userPrompt))
	start := time.Now()
	text, err := a.generator.GenerateText(ctx, "", userPrompt)
	if err != nil {
		logger.Error("generation failed", "err", err, "duration_ms", time.Since(start).Milliseconds())
		if a.alerter != nil {
			a.pending.Add(1)
			go func() {
				defer a.pending.Done()
				a.observeFailure(ctx, kind)
			}()
		}
		return "", &GenerationError{Operation: string(kind), Err: err}
	}
	logger.Info("generated", "text_bytes", len(text), "duration_ms", time.Since(start).Milliseconds())
	return text, nil
}

// Wait blocks until failure observations started by earlier calls finish.
func (a *App) Wait() {
	a.pending.Wait()
}

// observeFailure runs in the background after a failed call.
func (a *App) observeFailure(ctx context.Context, kind prompt.Kind) {
	logger := util.LoggerFromContext(ctx)
	result, err := a.alerter.Observe(ctx, string(kind))
	if err != nil {
		logger.Warn("failure alerter unavailable", "err", err)
		return
	}
	if result.Triggered {
		logger.Warn("upstream_failure_alert",
			"operation", string(kind),
			"count", result.Count,
			"threshold", result.Threshold,
			"window", result.Window.String(),
		)
	}
}
