// Package detector identifies project ecosystems so covergate can
// propose coverage-enabled test commands and report locations.
package detector

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bebsworthy/covergate/internal/debug"
)

// ProjectType represents a detected project type with confidence score
type ProjectType struct {
	Name       string   // Project type name (e.g., "nodejs", "go", "rust")
	Confidence float64  // Confidence score between 0 and 1
	Markers    []string // Files that identified this type
}

// marker is a characteristic file with the weight it contributes to the
// confidence score. Names may be glob patterns.
type marker struct {
	name   string
	weight float64
}

// ecosystem groups the markers that identify one project type. The table
// order fixes the scan order, which keeps detection output deterministic.
type ecosystem struct {
	name    string
	markers []marker
}

func defaultEcosystems() []ecosystem {
	return []ecosystem{
		{name: "nodejs", markers: []marker{
			{"package.json", 1.0},
			{"package-lock.json", 0.5},
			{"yarn.lock", 0.5},
			{"pnpm-lock.yaml", 0.5},
			{"node_modules", 0.3},
			{".nvmrc", 0.2},
			{"tsconfig.json", 0.4},
			{"jsconfig.json", 0.4},
		}},
		{name: "go", markers: []marker{
			{"go.mod", 1.0},
			{"go.sum", 0.7},
			{"main.go", 0.4},
			{"go.work", 0.8},
			{"go.work.sum", 0.6},
		}},
		{name: "rust", markers: []marker{
			{"Cargo.toml", 1.0},
			{"Cargo.lock", 0.7},
			{"rust-toolchain", 0.5},
			{"rust-toolchain.toml", 0.5},
			{".cargo", 0.4},
		}},
		{name: "python", markers: []marker{
			{"setup.py", 0.8},
			{"setup.cfg", 0.7},
			{"pyproject.toml", 1.0},
			{"requirements.txt", 0.6},
			{"Pipfile", 0.8},
			{"Pipfile.lock", 0.6},
			{"poetry.lock", 0.8},
			{"tox.ini", 0.5},
			{".python-version", 0.3},
			{"manage.py", 0.7}, // Django
		}},
		{name: "java", markers: []marker{
			{"pom.xml", 1.0},      // Maven
			{"build.gradle", 1.0}, // Gradle
			{"build.gradle.kts", 1.0},
			{"settings.gradle", 0.7},
			{"settings.gradle.kts", 0.7},
			{"gradlew", 0.5},
			{".mvn", 0.4},
		}},
		{name: "ruby", markers: []marker{
			{"Gemfile", 1.0},
			{"Gemfile.lock", 0.7},
			{"Rakefile", 0.6},
			{".ruby-version", 0.4},
			{".rvmrc", 0.3},
			{"config.ru", 0.5}, // Rack
		}},
		{name: "php", markers: []marker{
			{"composer.json", 1.0},
			{"composer.lock", 0.7},
			{"artisan", 0.8}, // Laravel
			{".php-version", 0.3},
		}},
		{name: "dotnet", markers: []marker{
			{"*.csproj", 1.0},
			{"*.fsproj", 1.0},
			{"*.vbproj", 1.0},
			{"*.sln", 0.9},
			{"global.json", 0.6},
			{"nuget.config", 0.5},
		}},
	}
}

// ProjectDetector scores directories against known ecosystem markers.
type ProjectDetector struct {
	ecosystems []ecosystem
}

// New creates a detector with the default marker tables.
func New() *ProjectDetector {
	return &ProjectDetector{ecosystems: defaultEcosystems()}
}

// Detect scans the given path for project type indicators.
func (d *ProjectDetector) Detect(path string) ([]ProjectType, error) {
	debug.LogSection("Project Detection")
	debug.Log("Scanning path: %s", path)

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path must be a directory")
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("error scanning directory: %w", err)
	}
	names := visibleNames(entries)

	var results []ProjectType
	for _, eco := range d.ecosystems {
		if found := eco.score(names); found.Confidence > 0 {
			results = append(results, found)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Confidence > results[j].Confidence
	})

	debug.Log("Detected %d project types", len(results))
	for _, result := range results {
		debug.Log("  %s (confidence: %.2f%%, markers: %v)",
			result.Name, result.Confidence*100, result.Markers)
	}

	return results, nil
}

// hiddenMarkerDirs are the hidden directories that are themselves markers.
var hiddenMarkerDirs = map[string]bool{".cargo": true, ".mvn": true}

// visibleNames returns entry names worth matching. Hidden directories are
// skipped unless they are markers; hidden files pass through.
func visibleNames(entries []os.DirEntry) []string {
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() && strings.HasPrefix(name, ".") && !hiddenMarkerDirs[name] {
			continue
		}
		names = append(names, name)
	}
	return names
}

// score matches a directory listing against this ecosystem's markers.
// Each marker counts at most once, so confidence stays within [0, 1] even
// when a glob marker matches several files.
func (e ecosystem) score(names []string) ProjectType {
	result := ProjectType{Name: e.name}

	var total, got float64
	for _, m := range e.markers {
		total += m.weight
		for _, name := range names {
			if matchesMarker(name, m.name) {
				debug.Log("Found marker %q for %s (weight: %.1f)", name, e.name, m.weight)
				got += m.weight
				result.Markers = append(result.Markers, name)
				break
			}
		}
	}
	if total > 0 {
		result.Confidence = got / total
	}
	return result
}

// matchesMarker checks if a filename matches a marker pattern
func matchesMarker(filename, pattern string) bool {
	if strings.Contains(pattern, "*") {
		matched, _ := filepath.Match(pattern, filename)
		return matched
	}
	return filename == pattern
}

// MonorepoInfo describes a detected multi-workspace repository.
type MonorepoInfo struct {
	Path        string
	IsMonorepo  bool
	Type        string
	Workspaces  []string
	SubProjects map[string][]ProjectType // Maps workspace path to detected project types
}

// monorepoMarkers are checked in order and the first hit wins. Yarn comes
// last because a yarn.lock only means a monorepo when package.json
// declares workspaces.
var monorepoMarkers = []struct {
	file string
	kind string
}{
	{"lerna.json", "lerna"},
	{"nx.json", "nx"},
	{"workspace.json", "nx-legacy"},
	{"rush.json", "rush"},
	{"turbo.json", "turborepo"},
	{"pnpm-workspace.yaml", "pnpm"},
	{".yarnrc.yml", "yarn-berry"},
	{"WORKSPACE", "bazel"},
	{"WORKSPACE.bazel", "bazel"},
	{"yarn.lock", "yarn-workspaces"},
}

// DetectMonorepo checks for common monorepo patterns. Workspaces found
// here become candidates for per-path command and coverage overrides.
func (d *ProjectDetector) DetectMonorepo(path string) (*MonorepoInfo, error) {
	info := &MonorepoInfo{
		Path:        path,
		Workspaces:  []string{},
		SubProjects: make(map[string][]ProjectType),
	}

	for _, m := range monorepoMarkers {
		if _, err := os.Stat(filepath.Join(path, m.file)); err != nil {
			continue
		}
		if m.kind == "yarn-workspaces" && !declaresYarnWorkspaces(path) {
			continue
		}
		info.IsMonorepo = true
		info.Type = m.kind
		break
	}

	// A go.work outranks JS tooling markers.
	if _, err := os.Stat(filepath.Join(path, "go.work")); err == nil {
		info.IsMonorepo = true
		info.Type = "go-workspace"
	}

	if info.IsMonorepo {
		if err := d.scanWorkspaces(info); err != nil {
			return info, fmt.Errorf("error scanning workspaces: %w", err)
		}
	}

	return info, nil
}

// declaresYarnWorkspaces reports whether package.json has a workspaces
// field, in either its array or object form.
func declaresYarnWorkspaces(path string) bool {
	data, err := os.ReadFile(filepath.Join(path, "package.json"))
	if err != nil {
		return false
	}
	var pkg struct {
		Workspaces json.RawMessage `json:"workspaces"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return false
	}
	return len(pkg.Workspaces) > 0
}

// workspaceGlobs are the directory layouts scanned for workspace members.
var workspaceGlobs = []string{
	"packages/*",
	"apps/*",
	"services/*",
	"libs/*",
	"modules/*",
	"projects/*",
}

func (d *ProjectDetector) scanWorkspaces(info *MonorepoInfo) error {
	for _, pattern := range workspaceGlobs {
		matches, err := filepath.Glob(filepath.Join(info.Path, pattern))
		if err != nil {
			continue
		}

		for _, match := range matches {
			stat, err := os.Stat(match)
			if err != nil || !stat.IsDir() {
				continue
			}
			rel, err := filepath.Rel(info.Path, match)
			if err != nil {
				continue
			}

			info.Workspaces = append(info.Workspaces, rel)
			if projects, err := d.Detect(match); err == nil && len(projects) > 0 {
				info.SubProjects[rel] = projects
			}
		}
	}

	sort.Strings(info.Workspaces)
	return nil
}

// GetDefaultConfigName returns the embedded default configuration name
// for a project type.
func GetDefaultConfigName(projectType string) string {
	switch projectType {
	case "go":
		return "golang.json"
	case "nodejs", "rust", "python", "java", "ruby", "php", "dotnet":
		return projectType + ".json"
	default:
		return ""
	}
}
