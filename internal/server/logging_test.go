package server_test

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"testing"

	"github.com/example/go-ortbind/internal/server"
)

// capturingHandler captures all slog records during a test.
type capturingHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (c *capturingHandler) Enabled(_ context.Context, _ slog.Level) bool { return true }
func (c *capturingHandler) Handle(_ context.Context, r slog.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, r)
	return nil
}
func (c *capturingHandler) WithAttrs(attrs []slog.Attr) slog.Handler { return c }
func (c *capturingHandler) WithGroup(name string) slog.Handler       { return c }

func (c *capturingHandler) attrMap(idx int) map[string]any {
	m := make(map[string]any)
	c.records[idx].Attrs(func(a slog.Attr) bool {
		m[a.Key] = a.Value.Any()
		return true
	})
	return m
}

func TestInfer_LogsCountsAndDuration(t *testing.T) {
	cap := &capturingHandler{}
	h := server.NewHandler(newBoundModel(t), server.WithLogger(slog.New(cap)))

	rec := postInfer(h, validBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}

	if len(cap.records) == 0 {
		t.Fatal("want at least one log record, got none")
	}

	var found bool
	for i := range cap.records {
		attrs := cap.attrMap(i)
		if _, ok := attrs["outputs"]; ok {
			found = true
			if attrs["outputs"] != int64(2) {
				t.Errorf("want outputs=2, got %v", attrs["outputs"])
			}
			if attrs["inputs"] != int64(3) {
				t.Errorf("want inputs=3, got %v", attrs["inputs"])
			}
			if _, ok := attrs["duration_ms"]; !ok {
				t.Error("want duration_ms attribute in log record")
			}
		}
	}
	if !found {
		t.Error("no log record contained an 'outputs' attribute")
	}
}

func TestInfer_LogsKindOnError(t *testing.T) {
	cap := &capturingHandler{}
	h := server.NewHandler(newFailingModel(t, errExecFailed), server.WithLogger(slog.New(cap)))

	rec := postInfer(h, `{"inputs":{"a":{"shape":[1],"data":[1]}}}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("want 422, got %d", rec.Code)
	}

	var found bool
	for i := range cap.records {
		attrs := cap.attrMap(i)
		if _, ok := attrs["error"]; ok {
			found = true
			if attrs["kind"] != "execution" {
				t.Errorf("want kind=execution, got %v", attrs["kind"])
			}
		}
	}
	if !found {
		t.Error("want a log record with an 'error' attribute on inference failure")
	}
}

func TestSetupLogger_LevelFromString(t *testing.T) {
	cases := []struct {
		level   string
		wantLvl slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo}, // default
	}

	for _, tc := range cases {
		t.Run(tc.level, func(t *testing.T) {
			lvl, err := server.ParseLogLevel(tc.level)
			if err != nil {
				t.Fatalf("ParseLogLevel(%q) error: %v", tc.level, err)
			}
			if lvl != tc.wantLvl {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tc.level, lvl, tc.wantLvl)
			}
		})
	}
}

func TestSetupLogger_InvalidLevelReturnsError(t *testing.T) {
	if _, err := server.ParseLogLevel("verbose"); err == nil {
		t.Error("want error for unknown log level")
	}
}
