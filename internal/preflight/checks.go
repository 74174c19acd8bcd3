package preflight

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"collective/internal/contract"
	"collective/internal/services"
)

// LedgerCheck names the ledger connectivity check.
const LedgerCheck = "Ledger RPC"

// HeightSource reports the current block height of the ledger.
type HeightSource interface {
	BlockHeight(ctx context.Context) (uint64, error)
}

// CheckConfig reports whether the configuration passes validation.
func CheckConfig(validate func() error) Result {
	const name = "Configuration"
	if err := validate(); err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: "valid"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable.
func CheckDirectoryAccess(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read ok)", path)}
}

// CheckLockDirectory verifies the send lock directory can be created and written.
func CheckLockDirectory(path string) Result {
	const name = "Lock directory"
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: create: %v)", path, err)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckDescriptors loads every named descriptor.
func CheckDescriptors(loader *contract.Loader, names []string) Result {
	const name = "Interface descriptors"
	if len(names) == 0 {
		return Result{Name: name, Passed: true, Detail: "none required"}
	}
	var failed []string
	for _, descriptor := range names {
		if _, err := loader.Load(descriptor); err != nil {
			failed = append(failed, descriptor)
		}
	}
	if len(failed) > 0 {
		return Result{Name: name, Detail: fmt.Sprintf("cannot load %s from %s", strings.Join(failed, ", "), loader.Dir())}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d loaded from %s", len(names), loader.Dir())}
}

// CheckLedger performs one block height round trip with a 10-second timeout.
func CheckLedger(ctx context.Context, heights HeightSource) Result {
	const name = LedgerCheck
	if heights == nil {
		return Result{Name: name, Detail: "not connected"}
	}
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	height, err := heights.BlockHeight(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: summarizeLedgerError(err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("reachable (block %d)", height)}
}

func summarizeLedgerError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "block height timed out (node unresponsive)"
	}
	if errors.Is(err, services.ErrTransport) {
		return "unreachable: " + err.Error()
	}
	return err.Error()
}
