// Package toolexec implements the per-TaskType action handlers the queue's
// Executor dispatches to (spec.md §4.3.3), plus the parameter-enhancement
// safety net of §4.3.4. Shared with the Planner's direct file-directive
// execution (spec.md §4.2.4), which applies the same path sanitisation and
// atomic-write discipline before the ReAct cycle even begins.
package toolexec

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// disallowedRoots are absolute path prefixes a file directive may never
// target, per spec.md §4.2.4.
var disallowedRoots = []string{"/bin", "/sbin", "/etc", "/usr", "/System", "/dev/null"}

// placeholderSegments mark a path as an LLM-invented example rather than a
// real target, per spec.md §4.2.4 ("placeholders like /path/to/*").
var placeholderSegments = []string{"/path/to/", "/example/"}

// SanitizePath rewrites filePath to a safe relative path under workDir when
// it is invalid, absolute into a disallowed location, or an obvious
// placeholder. description is used to infer a sensible filename when the
// original path must be discarded entirely (spec.md §4.2.4's fail-soft
// "inventing filenames from description keywords" behaviour).
func SanitizePath(filePath, description, workDir string) string {
	trimmed := strings.TrimSpace(filePath)
	if trimmed == "" || filepath.Base(trimmed) == "." || filepath.Base(trimmed) == string(filepath.Separator) {
		return filepath.Join(workDir, inferFilename(description))
	}

	for _, seg := range placeholderSegments {
		if strings.Contains(trimmed, seg) {
			return filepath.Join(workDir, inferFilename(description))
		}
	}

	if filepath.IsAbs(trimmed) {
		for _, root := range disallowedRoots {
			if trimmed == root || strings.HasPrefix(trimmed, root+"/") {
				return filepath.Join(workDir, inferFilename(description))
			}
		}
		// Other absolute paths are left as-is — the spec only disallows the
		// named system roots and placeholders, not every absolute path.
		return trimmed
	}

	return filepath.Join(workDir, trimmed)
}

// inferFilename derives a canned filename from keywords in description,
// per spec.md §4.2.4.
func inferFilename(description string) string {
	d := strings.ToLower(description)
	switch {
	case strings.Contains(d, "sql") || strings.Contains(d, "database"):
		return "schema.sql"
	case strings.Contains(d, "todo"):
		return "TODO.md"
	case strings.Contains(d, "readme"):
		return "README.md"
	case strings.Contains(d, "config"):
		return "config.yaml"
	case strings.Contains(d, "test"):
		return "generated_test.go"
	default:
		return "generated_output.txt"
	}
}

// WriteAtomic writes content to path via a temp file in the same directory
// followed by a rename, so a partial write never corrupts an existing file
// (spec.md §3 invariant: "Snapshot writes are atomic"; §4.2.4: "Write
// atomically: truncate-and-write or temp-file-then-rename").
func WriteAtomic(path string, content []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create parent directories: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
