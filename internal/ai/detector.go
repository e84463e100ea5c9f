package ai

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/bebsworthy/covergate/internal/executor"
)

// commandExecutor is the slice of CommandExecutor this package needs.
type commandExecutor interface {
	Execute(command string, args []string, options executor.ExecOptions) (*executor.ExecResult, error)
	RunScript(script string, options executor.ExecOptions) (*executor.ExecResult, error)
}

// knownTools lists the CLI tools covergate knows how to drive.
var knownTools = []struct {
	name    string
	command string
}{
	{"claude", "claude"},
	{"gemini", "gemini"},
}

// versionProbes are tried in order until one exits zero. A tool without a
// version flag still counts as available when --help works.
var versionProbes = [][]string{
	{"--version"},
	{"version"},
	{"--help"},
}

const (
	probeTimeout = 5 * time.Second
	detectionTTL = 5 * time.Minute
)

type toolDetector struct {
	executor commandExecutor

	mu       sync.Mutex
	detected []Tool
	probedAt time.Time
}

// NewToolDetector probes the PATH for installed AI CLI tools. Detection
// shells out once per tool, so results are cached for a few minutes.
func NewToolDetector(executor commandExecutor) ToolDetector {
	return &toolDetector{executor: executor}
}

// DetectTools returns the status of every known tool, probing them
// concurrently on a cache miss.
func (d *toolDetector) DetectTools() ([]Tool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.detected != nil && time.Since(d.probedAt) < detectionTTL {
		return d.detected, nil
	}

	tools := make([]Tool, len(knownTools))
	var wg sync.WaitGroup
	for i, known := range knownTools {
		wg.Add(1)
		go func(i int, name, command string) {
			defer wg.Done()
			tools[i] = d.probe(name, command)
		}(i, known.name, known.command)
	}
	wg.Wait()

	d.detected = tools
	d.probedAt = time.Now()
	return tools, nil
}

// IsToolAvailable reports whether the named tool is installed. Names are
// matched case-insensitively.
func (d *toolDetector) IsToolAvailable(toolName string) (bool, error) {
	tools, err := d.DetectTools()
	if err != nil {
		return false, err
	}
	for _, tool := range tools {
		if strings.EqualFold(tool.Name, toolName) {
			return tool.Available, nil
		}
	}
	return false, nil
}

func (d *toolDetector) probe(name, command string) Tool {
	tool := Tool{Name: name, Command: command}
	opts := executor.ExecOptions{Timeout: probeTimeout, InheritEnv: true}

	for _, args := range versionProbes {
		result, err := d.executor.Execute(command, args, opts)
		if err != nil || result.ExitCode != 0 {
			continue
		}
		tool.Available = true
		if args[0] != "--help" {
			tool.Version = extractVersion(result.Stdout)
		}
		return tool
	}
	return tool
}

var (
	semverPattern  = regexp.MustCompile(`v?(\d+\.\d+\.\d+(?:-[a-zA-Z0-9.-]+)?(?:\+[a-zA-Z0-9.-]+)?)`)
	twoPartPattern = regexp.MustCompile(`v?(\d+\.\d+)`)
)

// extractVersion pulls a version number out of version-probe output,
// falling back to the first line when nothing numeric is present.
func extractVersion(output string) string {
	for _, pattern := range []*regexp.Regexp{semverPattern, twoPartPattern} {
		if m := pattern.FindStringSubmatch(output); len(m) > 1 {
			return m[1]
		}
	}

	line, _, _ := strings.Cut(strings.TrimSpace(output), "\n")
	line = strings.ToLower(line)
	for _, prefix := range []string{"claude ", "gemini ", "version ", "v"} {
		line = strings.TrimPrefix(line, prefix)
	}
	line = strings.TrimSpace(line)
	if line == "" || len(line) >= 20 {
		return ""
	}
	return line
}

// GetAvailableTools filters to the tools that are actually installed.
func GetAvailableTools(tools []Tool) []Tool {
	available := []Tool{}
	for _, tool := range tools {
		if tool.Available {
			available = append(available, tool)
		}
	}
	return available
}

// FormatToolsStatus renders detection results for covergate config --ai.
func FormatToolsStatus(tools []Tool) string {
	var b strings.Builder
	b.WriteString("AI Tool Detection Results:\n")
	for _, tool := range tools {
		fmt.Fprintf(&b, "\n%s:\n", tool.Name)
		if !tool.Available {
			b.WriteString("  Status: ✗ Not found\n")
			b.WriteString("  Install: Run 'covergate config --ai' for installation instructions\n")
			continue
		}
		b.WriteString("  Status: ✓ Available\n")
		if tool.Version != "" {
			fmt.Fprintf(&b, "  Version: %s\n", tool.Version)
		}
		fmt.Fprintf(&b, "  Command: %s\n", tool.Command)
	}
	return b.String()
}
