package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackzampolin/primer/internal/app"
	"github.com/jackzampolin/primer/internal/config"
	"github.com/jackzampolin/primer/internal/home"
	"github.com/jackzampolin/primer/internal/pipeline"
	"github.com/jackzampolin/primer/internal/server/endpoints"
	"github.com/jackzampolin/primer/internal/testutil"
)

func openApp(t *testing.T, cfg testutil.ServerConfig) *app.App {
	t.Helper()
	mgr, err := config.NewManager(cfg.ConfigFile)
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	h, err := home.New(cfg.HomeDir)
	if err != nil {
		t.Fatalf("home: %v", err)
	}
	a, err := app.Open(context.Background(), app.Options{Config: mgr, Home: h, Logger: cfg.Logger})
	if err != nil {
		t.Fatalf("app.Open() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestNew_Defaults(t *testing.T) {
	srv, err := New(Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if srv.Addr() != "127.0.0.1:8080" {
		t.Errorf("Addr() = %s, want 127.0.0.1:8080", srv.Addr())
	}
	if srv.IsRunning() {
		t.Error("IsRunning() = true before Start")
	}
	if srv.Endpoints().Len() != len(endpoints.All()) {
		t.Errorf("registered %d endpoints, want %d", srv.Endpoints().Len(), len(endpoints.All()))
	}
}

func TestServer_RequireInit(t *testing.T) {
	srv, err := New(Config{})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		path string
		want int
	}{
		{"/health", http.StatusOK},
		{"/status", http.StatusOK},
		{"/api/chunks", http.StatusServiceUnavailable},
		{"/api/state", http.StatusServiceUnavailable},
		{"/api/process", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, httptest.NewRequest("GET", tt.path, nil))
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestServer_Handler(t *testing.T) {
	cfg := testutil.NewServerConfig(t, 120)
	a := openApp(t, cfg)
	srv, err := New(Config{Services: a.Services, Logger: cfg.Logger})
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/status")
	if err != nil {
		t.Fatal(err)
	}
	var status endpoints.StatusResponse
	json.NewDecoder(resp.Body).Decode(&status)
	resp.Body.Close()
	if status.Source.TotalLines != 120 || status.Storage != "memory" || status.Providers.Default != "mock" {
		t.Errorf("status = %+v", status)
	}

	body, _ := json.Marshal(endpoints.RunStageRequest{StartLine: 0, EndLine: 60})
	resp, err = http.Post(ts.URL+"/api/stages/theory-extraction/run", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	var run endpoints.RunStageResponse
	json.NewDecoder(resp.Body).Decode(&run)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !run.Success || run.Result.Span.End != 60 {
		t.Errorf("stage run = %d %+v", resp.StatusCode, run)
	}
}

func TestServer_Lifecycle(t *testing.T) {
	cfg := testutil.NewServerConfig(t, 250)
	a := openApp(t, cfg)
	srv, err := New(Config{Host: cfg.Host, Port: cfg.Port, Services: a.Services, Logger: cfg.Logger})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()
	starter := testutil.StartServer{Cancel: cancel}
	defer starter.Stop()

	if err := testutil.WaitForServer(cfg.URL(), 10*time.Second); err != nil {
		t.Fatalf("server did not start: %v", err)
	}
	if !srv.IsRunning() {
		t.Error("IsRunning() = false after start")
	}
	if err := srv.Start(ctx); err == nil {
		t.Error("second Start() should fail")
	}

	client := testutil.HTTPClient()
	body, _ := json.Marshal(endpoints.StartProcessRequest{StartLine: 0, EndLine: 250, ChunkSizeLines: 100})
	resp, err := client.Post(cfg.URL()+"/api/process", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("start process = %d", resp.StatusCode)
	}

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer waitCancel()
	if err := a.Runner.Wait(waitCtx); err != nil {
		t.Fatal(err)
	}
	var status pipeline.RunStatus
	resp, err = client.Get(cfg.URL() + "/api/process")
	if err != nil {
		t.Fatal(err)
	}
	json.NewDecoder(resp.Body).Decode(&status)
	resp.Body.Close()
	if status.Running || status.Succeeded != 3 {
		t.Errorf("run status = %+v", status)
	}

	cancel()
	if err := testutil.WaitForShutdown(done, 10*time.Second); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if srv.IsRunning() {
		t.Error("IsRunning() = true after shutdown")
	}
}
