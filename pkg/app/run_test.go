package app

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func TestResolveConfigPath_XDGConfigHome(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	want := filepath.Join(dir, "stagehand", "stagehand.yaml")
	if err := os.MkdirAll(filepath.Dir(want), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(want, []byte("version: \"1\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := ResolveConfigPath()
	if err != nil {
		t.Fatalf("ResolveConfigPath() error = %v", err)
	}
	if got != want {
		t.Errorf("ResolveConfigPath() = %q, want %q", got, want)
	}
}

func TestResolveConfigPath_CurrentDirectory(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "empty-config"))
	t.Chdir(dir)

	want := "stagehand.yaml"
	if err := os.WriteFile(filepath.Join(dir, want), []byte("version: \"1\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := ResolveConfigPath()
	if err != nil {
		t.Fatalf("ResolveConfigPath() error = %v", err)
	}
	if got != want {
		t.Errorf("ResolveConfigPath() = %q, want %q", got, want)
	}
}

func TestResolveConfigPath_NotFound(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "empty-config"))
	t.Chdir(dir)

	if _, err := ResolveConfigPath(); err == nil {
		t.Fatal("ResolveConfigPath() expected error, got nil")
	}
}

func TestRunOnce_GatewayBindFailureStopsScheduler(t *testing.T) {
	dir := t.TempDir()

	// Hold the port so the gateway cannot bind it.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserving port: %v", err)
	}
	defer ln.Close()

	cfgPath := filepath.Join(dir, "stagehand.yaml")
	contents := fmt.Sprintf("version: \"1\"\ngateway:\n  bind: %s\n", ln.Addr().String())
	if err := os.WriteFile(cfgPath, []byte(contents), 0o600); err != nil {
		t.Fatal(err)
	}

	params := RunParams{ConfigPath: cfgPath, DataDir: dir, Version: "test"}
	logger := slog.New(slog.DiscardHandler)
	restart, err := runOnce(context.Background(), cfgPath, params, logger,
		make(chan os.Signal), make(chan string))
	if err == nil {
		t.Fatal("runOnce succeeded with an occupied bind address")
	}
	if restart {
		t.Error("restart = true on startup failure")
	}

	// The maintenance scheduler started before the gateway; the failure path
	// must shut it down rather than leave it ticking.
	deadline := time.Now().Add(5 * time.Second)
	for {
		buf := make([]byte, 1<<20)
		n := runtime.Stack(buf, true)
		if !bytes.Contains(buf[:n], []byte("robfig/cron")) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("cron scheduler still running after gateway start failure")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestDefaultDataDir_XDGDataHome(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dir)

	want := filepath.Join(dir, "stagehand")
	if got := DefaultDataDir(); got != want {
		t.Errorf("DefaultDataDir() = %q, want %q", got, want)
	}
}

func TestDefaultDataDir_HomeFallback(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_DATA_HOME", "") // register cleanup, then clear entirely
	os.Unsetenv("XDG_DATA_HOME")

	want := filepath.Join(home, ".local", "share", "stagehand")
	if got := DefaultDataDir(); got != want {
		t.Errorf("DefaultDataDir() = %q, want %q", got, want)
	}
}
