package probe

import (
	"context"
	"os/exec"
	"runtime"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// KnownTools is the fixed inventory the spec names (spec.md §6, "Detected
// tool inventory"), probed at plan time and used only for advisories.
var KnownTools = []string{
	"git", "docker", "python3", "node", "npm", "java", "javac", "maven", "mvn",
	"pip", "pip3", "yarn", "go", "rust", "cargo", "php", "ruby", "dotnet",
}

// lookupTimeout bounds each which/where invocation per spec.md §4.2.1.
const lookupTimeout = 3 * time.Second

// ToolInventory caches which/where lookups for the lifetime of a Planner,
// so repeated plan creations (and repeated tool-availability checks within a
// single plan's execution, spec.md §4.2.2 step 1) don't re-shell for the
// same executable.
type ToolInventory struct {
	cache *lru.Cache[string, bool]
}

// NewToolInventory returns a ready-to-use inventory with a bounded cache.
func NewToolInventory(cacheSize int) *ToolInventory {
	if cacheSize <= 0 {
		cacheSize = 64
	}
	cache, _ := lru.New[string, bool](cacheSize)
	return &ToolInventory{cache: cache}
}

// Available reports whether exe is on PATH, using the OS-appropriate lookup
// command with a 3-second timeout. Results are cached; Invalidate clears a
// single entry if a later install makes a previously-missing tool available.
func (t *ToolInventory) Available(exe string) bool {
	if v, ok := t.cache.Get(exe); ok {
		return v
	}
	found := which(exe)
	t.cache.Add(exe, found)
	return found
}

// Invalidate drops exe from the cache so the next Available call re-checks.
func (t *ToolInventory) Invalidate(exe string) {
	t.cache.Remove(exe)
}

// Probe checks every entry in KnownTools and returns each one mapped to
// whether it is available.
func (t *ToolInventory) Probe() map[string]bool {
	out := make(map[string]bool, len(KnownTools))
	for _, tool := range KnownTools {
		out[tool] = t.Available(tool)
	}
	return out
}

func which(exe string) bool {
	lookupCmd := "which"
	if runtime.GOOS == "windows" {
		lookupCmd = "where"
	}
	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, lookupCmd, exe)
	return cmd.Run() == nil
}

// BaseExecutable extracts the base command name from a shell command line,
// handling "sudo X" and stripping any leading path, per spec.md §4.2.2 step 1.
func BaseExecutable(command string) string {
	fields := splitFields(command)
	if len(fields) == 0 {
		return ""
	}
	i := 0
	if fields[i] == "sudo" && len(fields) > 1 {
		i++
	}
	exe := fields[i]
	for j := len(exe) - 1; j >= 0; j-- {
		if exe[j] == '/' || exe[j] == '\\' {
			return exe[j+1:]
		}
	}
	return exe
}

func splitFields(s string) []string {
	var fields []string
	start := -1
	for i, r := range s {
		if r == ' ' || r == '\t' {
			if start >= 0 {
				fields = append(fields, s[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		fields = append(fields, s[start:])
	}
	return fields
}
