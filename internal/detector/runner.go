package detector

import (
	"os"
	"strings"

	"github.com/bebsworthy/covergate/internal/coverage"
	"github.com/bebsworthy/covergate/internal/debug"
)

// TestRunner describes a detected test runner together with the
// coverage-enabled command and report defaults proposed for it.
type TestRunner struct {
	Name       string // runner name, e.g. "pytest", "jest"
	Marker     string // file that identified it
	Command    string // suggested test command that emits a coverage report
	ReportKind string // report dialect the suggested command produces
	ReportPath string // report location the suggested command writes to
}

// runnerMarker binds a marker file pattern to a runner proposal. The
// table is ordered: the first marker found wins for each runner.
type runnerMarker struct {
	runner   TestRunner
	patterns []string
}

var runnerMarkers = []runnerMarker{
	{
		runner: TestRunner{
			Name:       "pytest",
			Command:    "pytest --cov --cov-report=xml:coverage.xml",
			ReportKind: coverage.KindCobertura,
			ReportPath: "coverage.xml",
		},
		patterns: []string{"pytest.ini", "conftest.py", "tox.ini"},
	},
	{
		runner: TestRunner{
			Name:       "jest",
			Command:    "npx jest --coverage --coverageReporters=cobertura",
			ReportKind: coverage.KindCobertura,
			ReportPath: "coverage/cobertura-coverage.xml",
		},
		patterns: []string{"jest.config.js", "jest.config.ts", "jest.config.mjs", "jest.config.cjs"},
	},
	{
		runner: TestRunner{
			Name:       "vitest",
			Command:    "npx vitest run --coverage --coverage.reporter=lcov",
			ReportKind: coverage.KindLCOV,
			ReportPath: "coverage/lcov.info",
		},
		patterns: []string{"vitest.config.ts", "vitest.config.js", "vitest.config.mts"},
	},
	{
		runner: TestRunner{
			Name:       "mocha",
			Command:    "npx nyc --reporter=cobertura mocha",
			ReportKind: coverage.KindCobertura,
			ReportPath: "coverage/cobertura-coverage.xml",
		},
		patterns: []string{".mocharc.yml", ".mocharc.json", ".mocharc.js", ".mocharc.cjs"},
	},
	{
		runner: TestRunner{
			Name:       "go-test",
			Command:    "go test -coverprofile=coverage.out ./...",
			ReportKind: coverage.KindGoCover,
			ReportPath: "coverage.out",
		},
		patterns: []string{"go.mod"},
	},
	{
		runner: TestRunner{
			Name:       "cargo-test",
			Command:    "cargo llvm-cov --lcov --output-path lcov.info",
			ReportKind: coverage.KindLCOV,
			ReportPath: "lcov.info",
		},
		patterns: []string{"Cargo.toml"},
	},
	{
		runner: TestRunner{
			Name:       "gradle-test",
			Command:    "gradle test jacocoTestReport",
			ReportKind: coverage.KindJaCoCo,
			ReportPath: "build/reports/jacoco/test/jacocoTestReport.xml",
		},
		patterns: []string{"build.gradle", "build.gradle.kts"},
	},
	{
		runner: TestRunner{
			Name:       "maven-test",
			Command:    "mvn test jacoco:report",
			ReportKind: coverage.KindJaCoCo,
			ReportPath: "target/site/jacoco/jacoco.xml",
		},
		patterns: []string{"pom.xml"},
	},
	{
		runner: TestRunner{
			Name:       "rspec",
			Command:    "bundle exec rspec",
			ReportKind: coverage.KindCobertura,
			ReportPath: "coverage/coverage.xml",
		},
		patterns: []string{".rspec"},
	},
	{
		runner: TestRunner{
			Name:       "phpunit",
			Command:    "phpunit --coverage-cobertura coverage.xml",
			ReportKind: coverage.KindCobertura,
			ReportPath: "coverage.xml",
		},
		patterns: []string{"phpunit.xml", "phpunit.xml.dist"},
	},
	{
		runner: TestRunner{
			Name:       "dotnet-test",
			Command:    "dotnet test --collect:\"XPlat Code Coverage\"",
			ReportKind: coverage.KindCobertura,
			ReportPath: "TestResults/coverage.cobertura.xml",
		},
		patterns: []string{"*.csproj", "*.sln"},
	},
}

// DetectTestRunners scans a directory for test runner markers and
// returns a proposal per runner found, in table order.
func (d *ProjectDetector) DetectTestRunners(path string) ([]TestRunner, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}

	var runners []TestRunner
	for _, rm := range runnerMarkers {
		marker, found := firstMarkerMatch(names, rm.patterns)
		if !found {
			continue
		}
		runner := rm.runner
		runner.Marker = marker
		debug.Log("Found test runner %s via %s", runner.Name, marker)
		runners = append(runners, runner)
	}

	return runners, nil
}

// BestTestRunner returns the proposal for the most specific runner
// found, or false when no marker matched. Runner config files (pytest.ini,
// jest.config.js) outrank bare ecosystem manifests, so the table order
// already encodes specificity.
func (d *ProjectDetector) BestTestRunner(path string) (TestRunner, bool) {
	runners, err := d.DetectTestRunners(path)
	if err != nil || len(runners) == 0 {
		return TestRunner{}, false
	}
	return runners[0], true
}

func firstMarkerMatch(names, patterns []string) (string, bool) {
	for _, pattern := range patterns {
		for _, name := range names {
			if matchesMarker(name, pattern) {
				return name, true
			}
		}
	}
	return "", false
}

// RunnerForProjectType returns the fallback proposal for a detected
// project type when no runner-specific marker exists.
func RunnerForProjectType(projectType string) (TestRunner, bool) {
	fallbacks := map[string]string{
		"python": "pytest",
		"nodejs": "jest",
		"go":     "go-test",
		"rust":   "cargo-test",
		"java":   "gradle-test",
		"ruby":   "rspec",
		"php":    "phpunit",
		"dotnet": "dotnet-test",
	}

	name, ok := fallbacks[strings.ToLower(projectType)]
	if !ok {
		return TestRunner{}, false
	}
	for _, rm := range runnerMarkers {
		if rm.runner.Name == name {
			return rm.runner, true
		}
	}
	return TestRunner{}, false
}
