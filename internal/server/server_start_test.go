package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/go-ortbind/internal/binder"
	"github.com/example/go-ortbind/internal/binder/bindertest"
	"github.com/example/go-ortbind/internal/config"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func TestStart_LifecycleHealthAndShutdown(t *testing.T) {
	addr := freeAddr(t)

	cfg := config.DefaultConfig().Server
	cfg.ListenAddr = addr

	engine := bindertest.NewEngine().Add("m.onnx", bindertest.Model{
		Inputs:  bindertest.Specs("a"),
		Outputs: bindertest.Specs("x"),
		Execute: bindertest.Identity,
	})
	model, err := binder.Open(context.Background(), engine, "m.onnx")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer model.Close()

	s := New(cfg, model).
		WithShutdownTimeout(2 * time.Second).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Start(ctx)
	}()

	client := &http.Client{Timeout: 2 * time.Second}

	var resp *http.Response
	for range 50 {
		resp, err = client.Get(fmt.Sprintf("http://%s/health", addr))
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("server never became ready: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/health status = %d; want 200", resp.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode /health: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q; want ok", body["status"])
	}

	if err := ProbeHTTP(addr); err != nil {
		t.Errorf("ProbeHTTP: %v", err)
	}

	health, err := FetchHealth(addr)
	if err != nil {
		t.Fatalf("FetchHealth: %v", err)
	}
	if health.Status != "ok" || health.Model != "ready" || health.Version == "" {
		t.Errorf("health = %+v", health)
	}

	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Start() returned error on shutdown: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return within 5s of context cancel")
	}
}

func TestStart_RequiresModel(t *testing.T) {
	if err := New(config.DefaultConfig().Server, nil).Start(context.Background()); err == nil {
		t.Fatal("want error without a model")
	}
}

func TestStart_ListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	cfg := config.DefaultConfig().Server
	cfg.ListenAddr = ln.Addr().String()

	err = New(cfg, binder.New(bindertest.NewEngine())).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Start(context.Background())
	if err == nil {
		t.Fatal("want listen error for an address in use")
	}
}

func TestNew_ShutdownTimeoutFromConfig(t *testing.T) {
	cfg := config.ServerConfig{ShutdownTimeout: 7}
	if got := New(cfg, nil).shutdownTimeout; got != 7*time.Second {
		t.Errorf("shutdownTimeout = %v; want 7s", got)
	}
	if got := New(config.ServerConfig{}, nil).shutdownTimeout; got != 30*time.Second {
		t.Errorf("default shutdownTimeout = %v; want 30s", got)
	}
}

func TestProbeHTTP_Unreachable(t *testing.T) {
	if err := ProbeHTTP(freeAddr(t)); err == nil {
		t.Fatal("want error for closed port")
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{binder.ErrNotInitialized, http.StatusServiceUnavailable},
		{&binder.MissingInputError{Name: "a"}, http.StatusBadRequest},
		{&binder.ExecutionError{Err: io.EOF}, http.StatusUnprocessableEntity},
		{&binder.ExecutionError{Err: context.DeadlineExceeded}, http.StatusGatewayTimeout},
		{io.EOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d; want %d", tt.err, got, tt.want)
		}
	}
}

func TestWriteJSON_EncodeFailureIs500(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusOK, map[string]any{"bad": make(chan int)})

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d; want 500", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !strings.HasPrefix(body["error"], "encode response:") {
		t.Errorf("error = %q", body["error"])
	}
}

func TestFetchHealth_BadBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	if _, err := FetchHealth(strings.TrimPrefix(srv.URL, "http://")); err == nil {
		t.Fatal("want decode error")
	}
}
