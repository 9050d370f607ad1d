package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"alchemist/internal/config"
	"alchemist/internal/deps"
	"alchemist/internal/services/llm"
	"alchemist/internal/services/wordpress"
)

// MinFreeBytes is the free space the data directory needs for the database
// and generated assets.
const MinFreeBytes uint64 = 512 << 20

// CheckLLM verifies that the LLM API is reachable and the key is valid.
// It uses a 30-second timeout and a single attempt (no retries).
func CheckLLM(ctx context.Context, cfg config.LLM) Result {
	const name = "LLM API"
	if strings.TrimSpace(cfg.APIKey) == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := llm.NewClient(llm.Config{
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		EmbeddingsURL:  cfg.EmbeddingsURL,
		Model:          cfg.Model,
		EmbeddingModel: cfg.EmbeddingModel,
		Referer:        cfg.Referer,
		Title:          cfg.Title,
		TimeoutSeconds: cfg.TimeoutSeconds,
	}, llm.WithRetryMaxAttempts(1))

	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeNetworkError("health check", err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckWordPress verifies the publishing credentials against the site.
func CheckWordPress(ctx context.Context, cfg config.WordPress) Result {
	const name = "WordPress"
	if strings.TrimSpace(cfg.URL) == "" {
		return Result{Name: name, Detail: "missing url"}
	}
	if strings.TrimSpace(cfg.Username) == "" || strings.TrimSpace(cfg.AppPassword) == "" {
		return Result{Name: name, Detail: "missing username or app password"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client := wordpress.NewClient(wordpress.Config{
		URL:            cfg.URL,
		Username:       cfg.Username,
		AppPassword:    cfg.AppPassword,
		TimeoutSeconds: cfg.TimeoutSeconds,
	})
	if err := client.Verify(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeNetworkError("auth check", err)}
	}
	return Result{Name: name, Passed: true, Detail: "authenticated"}
}

// CheckAPIKey reports whether a credential is configured without calling out.
func CheckAPIKey(name, key string, optional bool) Result {
	if strings.TrimSpace(key) == "" {
		return Result{Name: name, Optional: optional, Detail: "not configured"}
	}
	return Result{Name: name, Passed: true, Optional: optional, Detail: "configured"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
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
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace verifies that the filesystem holding path has at least
// minBytes available to unprivileged users.
func CheckFreeSpace(name, path string, minBytes uint64) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := stat.Bavail * uint64(stat.Bsize)
	detail := fmt.Sprintf("%s free on %s", humanize.IBytes(free), path)
	if free < minBytes {
		return Result{Name: name, Detail: fmt.Sprintf("%s (need %s)", detail, humanize.IBytes(minBytes))}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckSourcesFile verifies that the discovery sources file is readable. A
// missing file is reported but optional: scrape_url runs can still be
// enqueued by hand.
func CheckSourcesFile(path string) Result {
	const name = "Sources file"
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Optional: true, Detail: "not configured"}
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return Result{Name: name, Optional: true, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Optional: true, Detail: path}
}

// CheckSystemDeps evaluates the external binaries the enabled stages need.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	var requirements []deps.Requirement
	if cfg.Video.Enabled {
		requirements = append(requirements, deps.FFmpeg(cfg.FFmpegBinary()))
	}
	return deps.CheckBinaries(requirements)
}

// summarizeNetworkError produces a human-readable summary for service check failures.
func summarizeNetworkError(check string, err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return check + " timed out (API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return check + " timed out (API unreachable)"
	}
	return err.Error()
}
