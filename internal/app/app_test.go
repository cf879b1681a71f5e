package app

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"codeassist/internal/alert"
)

type stubGenerator struct {
	mu      sync.Mutex
	text    string
	err     error
	prompts []string
	ctxErrs []error
}

func (s *stubGenerator) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, userPrompt)
	s.ctxErrs = append(s.ctxErrs, ctx.Err())
	if s.err != nil {
		return "", s.err
	}
	return s.text, nil
}

func newTestApp(t *testing.T, gen *stubGenerator) *App {
	t.Helper()
	a, err := New(Config{Generator: gen})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a
}

func TestNewRequiresGenerator(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error without generator")
	}
}

func TestOperationsBuildPromptsAndReturnText(t *testing.T) {
	gen := &stubGenerator{text: "T"}
	a := newTestApp(t, gen)
	ctx := context.Background()

	tests := []struct {
		name       string
		run        func() (string, error)
		wantPrompt string
	}{
		{"explain", func() (string, error) { return a.Explain(ctx, "let x=1;") }, "Explain this code in detail: let x=1;"},
		{"debug", func() (string, error) { return a.Debug(ctx, "x=1") }, "Find bugs in the following code and suggest fixes:\nx=1"},
		{"simplify", func() (string, error) { return a.Simplify(ctx, "x=1", "python") }, "You are an expert python developer."},
	}
	for i, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.run()
			if err != nil {
				t.Fatalf("%s: %v", tc.name, err)
			}
			if got != "T" {
				t.Fatalf("%s text = %q", tc.name, got)
			}
			if !strings.Contains(gen.prompts[i], tc.wantPrompt) {
				t.Fatalf("%s prompt = %q, want it to contain %q", tc.name, gen.prompts[i], tc.wantPrompt)
			}
		})
	}
}

func TestOperationsRejectMissingFieldsWithoutCallingUpstream(t *testing.T) {
	gen := &stubGenerator{text: "T"}
	a := newTestApp(t, gen)
	ctx := context.Background()

	if _, err := a.Explain(ctx, ""); !errors.Is(err, ErrCodeRequired) {
		t.Fatalf("explain err = %v", err)
	}
	if _, err := a.Debug(ctx, ""); !errors.Is(err, ErrCodeRequired) {
		t.Fatalf("debug err = %v", err)
	}
	if _, err := a.Simplify(ctx, "", "go"); !errors.Is(err, ErrCodeRequired) {
		t.Fatalf("simplify err = %v", err)
	}
	if _, err := a.Simplify(ctx, "x", ""); !errors.Is(err, ErrLanguageRequired) {
		t.Fatalf("simplify err = %v", err)
	}
	if len(gen.prompts) != 0 {
		t.Fatalf("expected no upstream calls, got %d", len(gen.prompts))
	}
}

func TestGenerationErrorKeepsUpstreamMessage(t *testing.T) {
	upstream := errors.New("quota exceeded")
	a := newTestApp(t, &stubGenerator{err: upstream})

	_, err := a.Explain(context.Background(), "x")
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("err = %T, want *GenerationError", err)
	}
	if genErr.Error() != "quota exceeded" {
		t.Fatalf("message = %q", genErr.Error())
	}
	if genErr.Operation != "explain" {
		t.Fatalf("operation = %q", genErr.Operation)
	}
	if !errors.Is(err, upstream) {
		t.Fatal("expected GenerationError to unwrap to the upstream error")
	}
}

func TestCanceledCallerDoesNotCancelUpstream(t *testing.T) {
	gen := &stubGenerator{text: "T"}
	a := newTestApp(t, gen)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := a.Debug(ctx, "x=1"); err != nil {
		t.Fatalf("debug: %v", err)
	}
	if gen.ctxErrs[0] != nil {
		t.Fatalf("upstream saw canceled context: %v", gen.ctxErrs[0])
	}
}

func TestFailuresAreCountedByAlerter(t *testing.T) {
	redis := miniredis.RunT(t)
	alerter, err := alert.NewFailureAlerter(alert.Config{Addr: redis.Addr(), Prefix: "test:app", Threshold: 2, Window: time.Minute})
	if err != nil {
		t.Fatalf("new alerter: %v", err)
	}
	a, err := New(Config{Generator: &stubGenerator{err: errors.New("boom")}, Alerter: alerter})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := a.Simplify(context.Background(), "x", "go"); err == nil {
			t.Fatal("expected generation error")
		}
	}
	a.Wait()
	keys := redis.Keys()
	if len(keys) != 1 {
		t.Fatalf("expected one counter key, got %v", keys)
	}
	if got, _ := redis.Get(keys[0]); got != "2" {
		t.Fatalf("failure count = %q, want 2", got)
	}
}

func TestAlerterOutageDoesNotChangeResult(t *testing.T) {
	redis := miniredis.RunT(t)
	alerter, err := alert.NewFailureAlerter(alert.Config{Addr: redis.Addr(), Threshold: 1})
	if err != nil {
		t.Fatalf("new alerter: %v", err)
	}
	redis.Close()
	a, err := New(Config{Generator: &stubGenerator{err: errors.New("network down")}, Alerter: alerter})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	_, err = a.Explain(context.Background(), "x")
	if err == nil || err.Error() != "network down" {
		t.Fatalf("err = %v, want upstream error unchanged", err)
	}
	a.Wait()
}

func TestUnresponsiveAlerterDoesNotDelayFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()

	alerter, err := alert.NewFailureAlerter(alert.Config{Addr: ln.Addr().String(), Threshold: 1})
	if err != nil {
		t.Fatalf("new alerter: %v", err)
	}
	defer alerter.Close()
	a, err := New(Config{Generator: &stubGenerator{err: errors.New("quota exceeded")}, Alerter: alerter})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}

	start := time.Now()
	if _, err := a.Debug(context.Background(), "x"); err == nil {
		t.Fatal("expected generation error")
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("failure took %s, want it returned without waiting on redis", elapsed)
	}

	_ = ln.Close()
	mu.Lock()
	for _, conn := range conns {
		_ = conn.Close()
	}
	mu.Unlock()
	a.Wait()
}
