package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"collective/internal/config"
	"collective/internal/ledger"
	"collective/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	fake       *testsupport.FakeLedger
	logs       bytes.Buffer
	dials      int
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	env := &cliTestEnv{
		cfg:        cfg,
		configPath: filepath.Join(testsupport.BaseDir(cfg), "config.toml"),
		fake:       testsupport.NewFakeLedger(t),
	}
	env.writeConfig(t)
	return env
}

// writeConfig persists env.cfg so edits made by a test reach the CLI.
func (e *cliTestEnv) writeConfig(t *testing.T) {
	t.Helper()
	data, err := toml.Marshal(e.cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(e.configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var configFlag, envFileFlag, logLevelFlag string
	ctx := newCommandContext(&configFlag, &envFileFlag, &logLevelFlag)
	ctx.logOutput = &e.logs
	ctx.dial = func(context.Context, *config.Config, *slog.Logger) (ledger.Client, func(), error) {
		e.dials++
		return e.fake, func() {}, nil
	}

	cmd := buildRootCommand(ctx)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func requireMethods(t *testing.T, fake *testsupport.FakeLedger, want ...string) {
	t.Helper()
	got := strings.Join(fake.SentMethods(), ",")
	if got != strings.Join(want, ",") {
		t.Fatalf("expected sends %v, got %s", want, got)
	}
}
