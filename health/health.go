package health

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/zero-day-ai/exercise-forge/audit"
	"github.com/zero-day-ai/exercise-forge/exec"
)

// Check names.
const (
	NameGenerator = "generator"
	NameStateRoot = "state_root"
	NameAuditLog  = "audit_log"
	NameRedis     = "redis"
)

const versionTimeout = 5 * time.Second

var versionPattern = regexp.MustCompile(`(\d+)\.(\d+)(?:\.(\d+))?`)

// GeneratorCheck verifies the generator binary resolves on PATH, or exists
// when given as a path.
func GeneratorCheck(executable string) Status {
	if executable == "" {
		return unhealthy(NameGenerator, "generator executable is not configured", nil)
	}
	path, err := exec.BinaryPath(executable)
	if err != nil {
		return unhealthy(NameGenerator,
			fmt.Sprintf("generator '%s' not found", executable),
			map[string]any{"executable": executable, "error": err.Error()},
		)
	}
	return healthy(NameGenerator, fmt.Sprintf("generator '%s' found at %s", executable, path))
}

// GeneratorVersionCheck runs `<executable> --version` and compares the first
// dotted version in its output against minVersion. Unparseable output is
// degraded rather than unhealthy.
func GeneratorVersionCheck(ctx context.Context, executable, minVersion string) Status {
	if st := GeneratorCheck(executable); !st.IsHealthy() {
		return st
	}

	res, err := exec.Run(ctx, exec.Config{
		Command: executable,
		Args:    []string{"--version"},
		Timeout: versionTimeout,
	})
	if err != nil || res.ExitCode != 0 {
		details := map[string]any{"executable": executable}
		if err != nil {
			details["error"] = err.Error()
		} else {
			details["exit_code"] = res.ExitCode
			details["stderr"] = string(res.Stderr)
		}
		return unhealthy(NameGenerator, fmt.Sprintf("failed to get version for '%s'", executable), details)
	}

	output := string(res.Stdout) + string(res.Stderr)
	version := parseVersion(output)
	if version == "" {
		return degraded(NameGenerator,
			fmt.Sprintf("could not parse version from '%s' output", executable),
			map[string]any{"executable": executable, "output": strings.TrimSpace(output)},
		)
	}
	if !versionAtLeast(version, minVersion) {
		return unhealthy(NameGenerator,
			fmt.Sprintf("generator '%s' version %s is below %s", executable, version, minVersion),
			map[string]any{"executable": executable, "version": version, "min_version": minVersion},
		)
	}
	return healthy(NameGenerator, fmt.Sprintf("generator '%s' version %s meets %s", executable, version, minVersion))
}

// StateRootCheck creates root if needed and proves it is writable by
// writing and removing a probe file.
func StateRootCheck(root string) Status {
	if root == "" {
		return unhealthy(NameStateRoot, "state root is not configured", nil)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return unhealthy(NameStateRoot,
			fmt.Sprintf("cannot create state root '%s'", root),
			map[string]any{"path": root, "error": err.Error()},
		)
	}
	probe, err := os.CreateTemp(root, ".probe-*")
	if err != nil {
		return unhealthy(NameStateRoot,
			fmt.Sprintf("state root '%s' is not writable", root),
			map[string]any{"path": root, "error": err.Error()},
		)
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)

	abs, _ := filepath.Abs(root)
	return healthy(NameStateRoot, fmt.Sprintf("state root '%s' is writable", abs))
}

// AuditLogCheck reads the audit log. A missing log is healthy, since it is
// created on the first rejection; a log with undecodable lines is degraded.
func AuditLogCheck(path string) Status {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return healthy(NameAuditLog, fmt.Sprintf("no rejections recorded yet at %s", path))
	}
	entries, err := audit.ReadFile(path)
	if err != nil {
		return degraded(NameAuditLog,
			fmt.Sprintf("audit log '%s' is not readable", path),
			map[string]any{"path": path, "error": err.Error()},
		)
	}
	return Status{
		Name:    NameAuditLog,
		Status:  StatusHealthy,
		Message: fmt.Sprintf("audit log '%s' holds %d rejection(s)", path, len(entries)),
		Details: map[string]any{"entries": len(entries)},
	}
}

// Pinger is satisfied by *audit.RedisMirror.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RedisCheck pings the audit mirror. The mirror is optional, so a failed
// ping is degraded.
func RedisCheck(ctx context.Context, p Pinger) Status {
	if p == nil {
		return healthy(NameRedis, "redis mirror not configured")
	}
	if err := p.Ping(ctx); err != nil {
		return degraded(NameRedis, "redis mirror unreachable", map[string]any{"error": err.Error()})
	}
	return healthy(NameRedis, "redis mirror reachable")
}

// Combine aggregates checks into one status: unhealthy if any check is,
// else degraded if any check is, else healthy.
func Combine(checks ...Status) Status {
	if len(checks) == 0 {
		return healthy("", "no checks provided")
	}

	var failed, warned []string
	for _, c := range checks {
		label := c.Name
		if label == "" {
			label = c.Message
		}
		switch c.Status {
		case StatusUnhealthy:
			failed = append(failed, label)
		case StatusDegraded:
			warned = append(warned, label)
		}
	}

	switch {
	case len(failed) > 0:
		return unhealthy("", fmt.Sprintf("%d check(s) failed", len(failed)), map[string]any{
			"total":           len(checks),
			"failed_checks":   failed,
			"degraded_checks": warned,
		})
	case len(warned) > 0:
		return degraded("", fmt.Sprintf("%d check(s) degraded", len(warned)), map[string]any{
			"total":           len(checks),
			"degraded_checks": warned,
		})
	default:
		return healthy("", fmt.Sprintf("all %d check(s) passed", len(checks)))
	}
}

func parseVersion(output string) string {
	return versionPattern.FindString(output)
}

func versionAtLeast(version, minVersion string) bool {
	have := strings.Split(version, ".")
	want := strings.Split(minVersion, ".")
	for i := 0; i < max(len(have), len(want)); i++ {
		h, w := 0, 0
		if i < len(have) {
			h, _ = strconv.Atoi(have[i])
		}
		if i < len(want) {
			w, _ = strconv.Atoi(want[i])
		}
		if h != w {
			return h > w
		}
	}
	return true
}
