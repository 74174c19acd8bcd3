package preflight

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"collective/internal/contract"
	"collective/internal/services"
	"collective/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckLockDirectoryCreates(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state", "locks")
	result := CheckLockDirectory(dir)
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("expected lock dir to exist: %v", err)
	}
}

func TestCheckDescriptors(t *testing.T) {
	dir := t.TempDir()
	testsupport.WriteDescriptors(t, dir)
	loader := contract.NewLoader(dir)

	if result := CheckDescriptors(loader, []string{"Governance", "Storage"}); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	result := CheckDescriptors(loader, []string{"Governance", "Missing"})
	if result.Passed {
		t.Fatal("expected failure for missing descriptor")
	}
	if !strings.Contains(result.Detail, "Missing") || strings.Contains(result.Detail, "Governance") {
		t.Fatalf("expected only the missing descriptor named, got: %s", result.Detail)
	}
}

type heightStub struct {
	height uint64
	err    error
}

func (h heightStub) BlockHeight(context.Context) (uint64, error) { return h.height, h.err }

func TestCheckLedger(t *testing.T) {
	if result := CheckLedger(context.Background(), heightStub{height: 42}); !result.Passed || !strings.Contains(result.Detail, "42") {
		t.Fatalf("expected pass with height, got: %+v", result)
	}
	failed := CheckLedger(context.Background(), heightStub{err: services.Wrap(services.ErrTransport, "ledger", "blockNumber", "", errors.New("connection refused"))})
	if failed.Passed || !strings.HasPrefix(failed.Detail, "unreachable") {
		t.Fatalf("expected unreachable failure, got: %+v", failed)
	}
	if result := CheckLedger(context.Background(), nil); result.Passed {
		t.Fatal("expected failure without a connection")
	}
}

func TestRunAll(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	results := RunAll(context.Background(), cfg, heightStub{height: 7})
	if Failed(results) {
		t.Fatalf("expected all checks to pass, got %+v", results)
	}
	names := make([]string, len(results))
	for i, r := range results {
		names[i] = r.Name
	}
	want := "Configuration,Descriptor directory,Interface descriptors,Lock directory,Ledger RPC"
	if got := strings.Join(names, ","); got != want {
		t.Fatalf("unexpected checks %s", got)
	}
}

func TestRunAllSkipsDescriptorsWhenDirectoryMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Contracts.ABIPath = filepath.Join(t.TempDir(), "absent")
	results := RunAll(context.Background(), cfg, nil)
	if !Failed(results) {
		t.Fatal("expected failures")
	}
	for _, r := range results {
		if r.Name == "Interface descriptors" {
			t.Fatal("descriptor check should be skipped when the directory is missing")
		}
	}
}

func TestRequiredDescriptors(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	got := strings.Join(RequiredDescriptors(cfg), ",")
	want := "Governance,VoteStrategy,Storage,GovernanceBuilder,TreasuryBuilder,VoterClassFactory,System"
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
	cfg.Contracts.SystemAddress = ""
	cfg.Contracts.GovernanceAddress = ""
	if got := RequiredDescriptors(cfg); len(got) != 3 {
		t.Fatalf("unexpected descriptors %v", got)
	}
}
