// Package probe inspects the local working directory and goal text to build
// the context the Planner hands the LLM during decomposition (spec.md
// §4.2.1, phase 1: "context probe").
package probe

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// projectMarkers maps a well-known manifest/build filename to the project
// type it signals. Checked in directory-walk order; the first match anywhere
// in the walk sets the project type, and later matches are only listed in
// ManifestsFound.
var projectMarkers = map[string]string{
	"go.mod":           "go",
	"package.json":     "node",
	"pom.xml":          "maven",
	"build.gradle":     "gradle",
	"Cargo.toml":       "rust",
	"requirements.txt": "python",
	"pyproject.toml":   "python",
	"Gemfile":          "ruby",
	"composer.json":    "php",
	"*.csproj":         "dotnet",
}

// sourceExtensions is the set of file extensions counted toward
// ProjectProbe.SourceFileCounts.
var sourceExtensions = map[string]bool{
	".go": true, ".py": true, ".js": true, ".ts": true, ".jsx": true, ".tsx": true,
	".java": true, ".rb": true, ".php": true, ".rs": true, ".c": true, ".cpp": true,
	".h": true, ".cs": true, ".sh": true, ".sql": true, ".yaml": true, ".yml": true,
}

// ProjectProbe is the result of walking the working directory.
type ProjectProbe struct {
	ProjectType      string         `json:"project_type"`
	ProjectName      string         `json:"project_name,omitempty"`
	SourceFileCounts map[string]int `json:"source_file_counts"`
	ManifestsFound   []string       `json:"manifests_found"`
}

// ProbeDirectory walks dir to maxDepth (spec default 3), classifying
// project type by well-known manifest filenames and counting source files
// by extension. Unreadable subdirectories are skipped, not fatal.
func ProbeDirectory(dir string, maxDepth int) *ProjectProbe {
	p := &ProjectProbe{
		SourceFileCounts: make(map[string]int),
	}

	var walk func(path string, depth int)
	walk = func(path string, depth int) {
		if depth > maxDepth {
			return
		}
		entries, err := os.ReadDir(path)
		if err != nil {
			return
		}
		for _, e := range entries {
			name := e.Name()
			if strings.HasPrefix(name, ".") || name == "node_modules" || name == "vendor" {
				continue
			}
			full := filepath.Join(path, name)
			if e.IsDir() {
				walk(full, depth+1)
				continue
			}
			if pt, ok := projectMarkers[name]; ok {
				if p.ProjectType == "" {
					p.ProjectType = pt
				}
				p.ManifestsFound = append(p.ManifestsFound, name)
			}
			if strings.HasSuffix(name, ".csproj") {
				if p.ProjectType == "" {
					p.ProjectType = "dotnet"
				}
				p.ManifestsFound = append(p.ManifestsFound, name)
			}
			ext := filepath.Ext(name)
			if sourceExtensions[ext] {
				p.SourceFileCounts[ext]++
			}
		}
	}
	walk(dir, 0)

	sort.Strings(p.ManifestsFound)
	p.ProjectName = inferProjectName(dir)
	if p.ProjectType == "" {
		p.ProjectType = "unknown"
	}
	return p
}

// inferProjectName uses the working directory's basename as a simple stand-in
// for a project name field, consistent with the "extracting simple fields"
// language in spec.md §4.2.1 without requiring a manifest parser per ecosystem.
func inferProjectName(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	base := filepath.Base(abs)
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	return base
}

// fileRefPattern matches quoted paths and bare paths carrying a known
// extension, used to scan goal text for file references.
var fileRefPattern = regexp.MustCompile(`(?:"([^"]+\.[a-zA-Z0-9]+)")|(?:'([^']+\.[a-zA-Z0-9]+)')|(\S+\.(?:go|py|js|ts|jsx|tsx|java|rb|php|rs|c|cpp|h|cs|sh|sql|yaml|yml|json|md|txt))`)

// FileReferences scans goal for quoted paths and bare paths ending in a
// known extension, returning the unique set found in order of appearance.
func FileReferences(goal string) []string {
	matches := fileRefPattern.FindAllStringSubmatch(goal, -1)
	seen := make(map[string]bool, len(matches))
	var out []string
	for _, m := range matches {
		ref := firstNonEmpty(m[1], m[2], m[3])
		if ref == "" || seen[ref] {
			continue
		}
		seen[ref] = true
		out = append(out, ref)
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
