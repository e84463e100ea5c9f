//go:build unit

package coverage

import (
	"errors"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/bebsworthy/covergate/pkg/config"
)

func singleFileProcessor(t *testing.T, kind, reportPath, sourceFile string) *Processor {
	t.Helper()
	p, err := NewProcessor(&config.CoverageConfig{ReportPath: reportPath, Kind: kind}, sourceFile, "", nil)
	if err != nil {
		t.Fatalf("NewProcessor() error = %v", err)
	}
	return p
}

func TestNewProcessor(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *config.CoverageConfig
		wantMode Mode
		wantErr  bool
	}{
		{
			name:     "single file by default",
			cfg:      &config.CoverageConfig{ReportPath: "coverage.xml", Kind: KindCobertura},
			wantMode: ModeSingleFile,
		},
		{
			name:     "aggregate",
			cfg:      &config.CoverageConfig{ReportPath: "coverage.lcov", Kind: KindLCOV, Aggregate: true},
			wantMode: ModeAggregate,
		},
		{
			name:    "unsupported kind",
			cfg:     &config.CoverageConfig{ReportPath: "coverage.xml", Kind: "unsupported_type"},
			wantErr: true,
		},
		{
			name:    "diff without runner",
			cfg:     &config.CoverageConfig{ReportPath: "coverage.xml", Kind: KindCobertura, Diff: true, Branch: "main"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProcessor(tt.cfg, "app.py", "", nil)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewProcessor() error = %v", err)
			}
			if p.Mode() != tt.wantMode {
				t.Errorf("Mode() = %v, want %v", p.Mode(), tt.wantMode)
			}
			if p.ReportPath() != tt.cfg.ReportPath {
				t.Errorf("ReportPath() = %q, want %q", p.ReportPath(), tt.cfg.ReportPath)
			}
		})
	}
}

func TestNewProcessor_UnsupportedKindError(t *testing.T) {
	_, err := NewProcessor(&config.CoverageConfig{ReportPath: "r", Kind: "nope"}, "app.py", "", nil)
	if !errors.Is(err, ErrUnsupportedReportKind) {
		t.Errorf("error = %v, want ErrUnsupportedReportKind", err)
	}
}

func TestProcess_ReportMissing(t *testing.T) {
	p := singleFileProcessor(t, KindCobertura, t.TempDir()+"/absent.xml", "app.py")

	_, err := p.Process(time.Now())
	if !errors.Is(err, ErrReportMissing) {
		t.Errorf("error = %v, want ErrReportMissing", err)
	}
}

func TestProcess_ReportStale(t *testing.T) {
	path := writeReport(t, "coverage.xml", coberturaFixture)
	stale := time.Now().Add(-time.Hour)
	if err := os.Chtimes(path, stale, stale); err != nil {
		t.Fatalf("failed to age report: %v", err)
	}

	p := singleFileProcessor(t, KindCobertura, path, "app.py")

	_, err := p.Process(time.Now())
	if !errors.Is(err, ErrReportStale) {
		t.Errorf("error = %v, want ErrReportStale", err)
	}
}

func TestProcess_ReportMtimeEqualToStartIsFresh(t *testing.T) {
	path := writeReport(t, "coverage.xml", coberturaFixture)
	at := time.Now().Truncate(time.Second)
	if err := os.Chtimes(path, at, at); err != nil {
		t.Fatalf("failed to set report time: %v", err)
	}

	p := singleFileProcessor(t, KindCobertura, path, "app.py")

	if _, err := p.Process(at); err != nil {
		t.Errorf("Process() error = %v, want report accepted at boundary", err)
	}
}

func TestProcess_SingleFile(t *testing.T) {
	path := writeReport(t, "coverage.xml", coberturaFixture)
	p := singleFileProcessor(t, KindCobertura, path, "app.py")

	m, err := p.Process(time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if !reflect.DeepEqual(m.Covered, []int{1, 3}) {
		t.Errorf("Covered = %v, want [1 3]", m.Covered)
	}
	if !reflect.DeepEqual(m.Missed, []int{2, 4}) {
		t.Errorf("Missed = %v, want [2 4]", m.Missed)
	}
	if m.Fraction != 0.5 {
		t.Errorf("Fraction = %v, want 0.5", m.Fraction)
	}
}

func TestProcess_SingleFileMissingEntry(t *testing.T) {
	path := writeReport(t, "coverage.xml", coberturaFixture)
	p := singleFileProcessor(t, KindCobertura, path, "non_existent_file.py")

	m, err := p.Process(time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(m.Covered) != 0 || len(m.Missed) != 0 || m.Fraction != 0 {
		t.Errorf("measurement = %+v, want zero coverage", m)
	}
}

func TestProcess_Aggregate(t *testing.T) {
	lcov := "SF:a.py\nDA:1,1\nDA:2,1\nDA:3,0\nend_of_record\nSF:b.py\nDA:1,0\nend_of_record\n"
	path := writeReport(t, "coverage.lcov", lcov)

	p, err := NewProcessor(&config.CoverageConfig{ReportPath: path, Kind: KindLCOV, Aggregate: true}, "", "", nil)
	if err != nil {
		t.Fatalf("NewProcessor() error = %v", err)
	}

	m, err := p.Process(time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if want := 0.5; m.Fraction != want {
		t.Errorf("Fraction = %v, want %v", m.Fraction, want)
	}
	if want := 2.0 / 3.0; m.PerFile["a.py"] != want {
		t.Errorf("PerFile[a.py] = %v, want %v", m.PerFile["a.py"], want)
	}
	if m.PerFile["b.py"] != 0 {
		t.Errorf("PerFile[b.py] = %v, want 0", m.PerFile["b.py"])
	}
}

func TestProcess_AggregateEmptyReport(t *testing.T) {
	path := writeReport(t, "coverage.lcov", "")

	p, err := NewProcessor(&config.CoverageConfig{ReportPath: path, Kind: KindLCOV, Aggregate: true}, "", "", nil)
	if err != nil {
		t.Fatalf("NewProcessor() error = %v", err)
	}

	m, err := p.Process(time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("Process() error = %v, degenerate report must not fail", err)
	}
	if m.Fraction != 0 {
		t.Errorf("Fraction = %v, want 0", m.Fraction)
	}
}

func TestProcess_RereadsReportEveryCall(t *testing.T) {
	path := writeReport(t, "coverage.lcov", "SF:app.py\nDA:1,0\nend_of_record\n")
	p := singleFileProcessor(t, KindLCOV, path, "app.py")
	since := time.Now().Add(-time.Minute)

	m, err := p.Process(since)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if m.Fraction != 0 {
		t.Fatalf("first Fraction = %v, want 0", m.Fraction)
	}

	// The test command regenerates the report between attempts.
	if err := os.WriteFile(path, []byte("SF:app.py\nDA:1,1\nend_of_record\n"), 0o600); err != nil {
		t.Fatalf("failed to rewrite report: %v", err)
	}

	m, err = p.Process(since)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if m.Fraction != 1 {
		t.Errorf("second Fraction = %v, want 1 (stale cache?)", m.Fraction)
	}
}
