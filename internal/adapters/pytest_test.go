package adapters

import (
	"strings"
	"testing"
)

func TestPytestDetectViaIniFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pytest.ini", "[pytest]\n")
	if score := (Pytest{}).Detect(dir, ""); score != 80 {
		t.Fatalf("expected confidence 80, got %d", score)
	}
}

func TestPytestParseOutputFromStdoutReport(t *testing.T) {
	stdout := "collected 2 items\n\n" +
		`{"summary":{"passed":1,"failed":1,"total":2,"skipped":0},"tests":[` +
		`{"nodeid":"test_math.py::test_add","outcome":"passed","duration":0.01},` +
		`{"nodeid":"test_math.py::test_sub","outcome":"failed","duration":0.02,"lineno":15,"call":{"longrepr":"assert 1 == 2"}}` +
		`]}`
	result := (Pytest{}).ParseOutput(stdout, "", 1)
	if result.Summary.Passed != 1 || result.Summary.Failed != 1 {
		t.Fatalf("unexpected summary: %+v", result.Summary)
	}
	if len(result.Failures) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(result.Failures))
	}
	if result.Failures[0].Line != 15 {
		t.Fatalf("expected lineno 15 from json report, got %d", result.Failures[0].Line)
	}
	if result.Failures[0].File != "test_math.py" {
		t.Fatalf("expected file test_math.py, got %q", result.Failures[0].File)
	}
}

func TestPytestSuiteCommandShape(t *testing.T) {
	cmd, err := (Pytest{}).SuiteCommand("/proj", LevelUnit, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmd.Program != "python3" {
		t.Fatalf("expected python3, got %q", cmd.Program)
	}
	joined := strings.Join(cmd.Args, " ")
	if !strings.Contains(joined, "-m pytest") || !strings.Contains(joined, "--json-report-file=-") {
		t.Fatalf("unexpected args: %v", cmd.Args)
	}
}
