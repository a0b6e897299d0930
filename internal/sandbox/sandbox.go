// Package sandbox verifies fix candidates in throwaway working copies. The
// repository is copied to a temp directory, the candidate's changes are
// applied, and syntax checks plus the test suite run against the copy. The
// real working tree is never touched.
package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/repotoire/repotoire/internal/model"
)

// Sandbox verifies a proposal against an isolated copy of the repository.
type Sandbox interface {
	Verify(ctx context.Context, proposal model.FixProposal) (model.VerificationResult, error)
}

// Config holds sandbox settings.
type Config struct {
	RepoRoot string
	// TestCommand overrides the per-language default test runner.
	TestCommand string
	TestTimeout time.Duration
}

// Local runs verification directly on the host with exec.CommandContext
// under a timeout. Isolation comes from the working-copy temp directory,
// not from process-level sandboxing.
type Local struct {
	cfg Config
	log *slog.Logger
}

// NewLocal creates a host-process sandbox.
func NewLocal(cfg Config, log *slog.Logger) *Local {
	if cfg.TestTimeout <= 0 {
		cfg.TestTimeout = 120 * time.Second
	}
	return &Local{cfg: cfg, log: log}
}

// skipDirs are never copied into the working copy.
var skipDirs = map[string]bool{
	".git":         true,
	".venv":        true,
	"node_modules": true,
	"__pycache__":  true,
}

// Verify copies the repository, applies the candidate's changes, and runs
// syntax, import, optional type, and test checks. Candidate defects (change
// does not apply, syntax error) are reported in the result; only
// infrastructure failures return an error.
func (s *Local) Verify(ctx context.Context, proposal model.FixProposal) (model.VerificationResult, error) {
	start := time.Now()
	res := model.VerificationResult{FixID: proposal.ID}

	dir, err := os.MkdirTemp("", "repotoire-sandbox-*")
	if err != nil {
		return res, fmt.Errorf("sandbox: create temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	if err := copyTree(s.cfg.RepoRoot, dir); err != nil {
		return res, fmt.Errorf("sandbox: copy repository: %w", err)
	}

	// 1. Apply the candidate's changes to the copy.
	if err := applyChanges(dir, proposal.Changes); err != nil {
		res.Error = err.Error()
		res.DurationMs = time.Since(start).Milliseconds()
		return res, nil
	}

	// 2. Syntax-check every changed Python file. A non-Python change set
	// skips the check and is treated as syntactically fine.
	pyFiles := changedPythonFiles(proposal.Changes)
	res.SyntaxValid = true
	for _, f := range pyFiles {
		if err := s.runCheck(ctx, dir, "python3", "-m", "py_compile", f); err != nil {
			res.SyntaxValid = false
			res.Error = fmt.Sprintf("syntax check failed for %s: %v", f, err)
			res.DurationMs = time.Since(start).Milliseconds()
			return res, nil
		}
	}

	// 3. Import check: load each changed module in isolation.
	if len(pyFiles) > 0 {
		ok := true
		for _, f := range pyFiles {
			if err := s.runCheck(ctx, dir, "python3", "-c", importProbe, f); err != nil {
				s.log.Debug("import check failed", "file", f, "error", err)
				ok = false
				break
			}
		}
		res.ImportValid = &ok
	}

	// 4. Type check only when mypy is installed.
	if len(pyFiles) > 0 {
		if _, err := exec.LookPath("mypy"); err == nil {
			ok := true
			args := append([]string{"--ignore-missing-imports"}, pyFiles...)
			if err := s.runCheck(ctx, dir, "mypy", args...); err != nil {
				ok = false
			}
			res.TypeValid = &ok
		}
	}

	// 5. Run the test suite and parse counts from its summary output.
	passed, failed, err := s.runTests(ctx, dir)
	if err != nil {
		res.Error = err.Error()
		res.DurationMs = time.Since(start).Milliseconds()
		return res, nil
	}
	res.TestsPassed = passed
	res.TestsFailed = failed
	res.TestsTotal = passed + failed

	res.DurationMs = time.Since(start).Milliseconds()
	return res, nil
}

// importProbe loads a module from a file path without importing by name,
// so package layout in the copy does not matter.
const importProbe = `import importlib.util, sys
spec = importlib.util.spec_from_file_location("_probe", sys.argv[1])
mod = importlib.util.module_from_spec(spec)
spec.loader.exec_module(mod)`

func (s *Local) runCheck(ctx context.Context, dir, bin string, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %s", err, strings.TrimSpace(out.String()))
	}
	return nil
}

// runTests executes the configured (or default) test command and parses
// pass/fail counts. A failing exit code is normal when tests fail; only a
// timeout or an unparseable run is reported as an error.
func (s *Local) runTests(ctx context.Context, dir string) (passed, failed int, err error) {
	argv := []string{"python3", "-m", "pytest", "-q", "--color=no"}
	if s.cfg.TestCommand != "" {
		argv = strings.Fields(s.cfg.TestCommand)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.TestTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	runErr := cmd.Run()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return 0, 0, fmt.Errorf("test run timed out after %s", s.cfg.TestTimeout)
	}

	passed, failed, parsed := ParseTestSummary(out.String())
	if !parsed && runErr != nil {
		return 0, 0, fmt.Errorf("test run failed: %v: %s", runErr, tail(out.String(), 500))
	}
	return passed, failed, nil
}

var (
	rePassed = regexp.MustCompile(`(\d+) passed`)
	reFailed = regexp.MustCompile(`(\d+) failed`)
	reErrors = regexp.MustCompile(`(\d+) error`)
)

// ParseTestSummary extracts pass/fail counts from pytest-style summary
// output. Errored tests count as failures. parsed is false when no summary
// counts appear at all.
func ParseTestSummary(output string) (passed, failed int, parsed bool) {
	if m := rePassed.FindStringSubmatch(output); m != nil {
		passed, _ = strconv.Atoi(m[1])
		parsed = true
	}
	if m := reFailed.FindStringSubmatch(output); m != nil {
		n, _ := strconv.Atoi(m[1])
		failed += n
		parsed = true
	}
	if m := reErrors.FindStringSubmatch(output); m != nil {
		n, _ := strconv.Atoi(m[1])
		failed += n
		parsed = true
	}
	if strings.Contains(output, "no tests ran") {
		parsed = true
	}
	return passed, failed, parsed
}

// applyChanges edits the working copy in place. The original code is
// matched as a literal substring after trimming surrounding whitespace; an
// empty original creates or overwrites the file with the fixed code.
func applyChanges(root string, changes []model.Change) error {
	for _, c := range changes {
		path := filepath.Join(root, c.FilePath)
		needle := strings.TrimSpace(c.OriginalCode)

		if needle == "" {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return fmt.Errorf("apply %s: %w", c.FilePath, err)
			}
			if err := os.WriteFile(path, []byte(c.FixedCode), 0o644); err != nil {
				return fmt.Errorf("apply %s: %w", c.FilePath, err)
			}
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("apply %s: %w", c.FilePath, err)
		}
		content := string(data)
		if !strings.Contains(content, needle) {
			return fmt.Errorf("apply %s: original code not found", c.FilePath)
		}
		content = strings.Replace(content, needle, c.FixedCode, 1)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("apply %s: %w", c.FilePath, err)
		}
	}
	return nil
}

// changedPythonFiles lists the distinct .py paths touched by a change set.
func changedPythonFiles(changes []model.Change) []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range changes {
		if filepath.Ext(c.FilePath) != ".py" || seen[c.FilePath] {
			continue
		}
		seen[c.FilePath] = true
		out = append(out, c.FilePath)
	}
	return out
}

// copyTree copies src into dst, skipping VCS and dependency directories.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return os.MkdirAll(filepath.Join(dst, rel), 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return copyFile(path, filepath.Join(dst, rel))
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
