package preflight

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"mediaforge/internal/config"
	"mediaforge/internal/services/describer"
)

// CheckDescriber verifies that the naming API is reachable and the key is
// accepted. One attempt, short timeout; preflight should fail fast.
func CheckDescriber(ctx context.Context, cfg config.Describer) Result {
	const name = "Describer API"
	if cfg.APIKey == "" {
		return Result{Name: name, Detail: "API key missing (set MEDIAFORGE_GEMINI_API_KEY)"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := describer.NewClient(describer.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
	}, describer.WithRetryMaxAttempts(1))

	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckDirectoryAccess verifies that the directory exists and is
// readable/writable. A missing output root passes with a note, since the
// pipeline bootstraps it on first run.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (will be created)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeDiskSpace verifies the filesystem holding path has at least
// minFreeMiB available. Derivative generation writes several copies of every
// asset, so running out mid-stage is a common failure worth catching early.
func CheckFreeDiskSpace(path string, minFreeMiB int64) Result {
	const name = "Free disk space"

	statPath := path
	if _, err := os.Stat(statPath); err != nil {
		// Fall back to the working directory when the output root does not
		// exist yet; it will be created on the same filesystem in most setups.
		statPath = "."
	}

	var stat unix.Statfs_t
	if err := unix.Statfs(statPath, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("statfs %s: %v", statPath, err)}
	}

	freeMiB := int64(stat.Bavail) * stat.Bsize / (1 << 20)
	detail := fmt.Sprintf("%d MiB free (minimum %d MiB)", freeMiB, minFreeMiB)
	if freeMiB < minFreeMiB {
		return Result{Name: name, Detail: detail}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}
