package adapters

import (
	"bufio"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"strobe/internal/types"
)

var unittestDurationRe = regexp.MustCompile(`Ran \d+ tests? in ([\d.]+)s`)

// Unittest drives Python's stdlib unittest module directly, parsing
// its plain-text "test_name (module.Class) ... ok" lines (from stderr,
// where unittest -v writes them, or from stdout when only stdout has
// them) since it has no structured output mode of its own.
type Unittest struct{}

func (Unittest) Name() string { return "unittest" }

func (Unittest) Detect(projectRoot, command string) int {
	// pytest takes priority whenever its own config is present.
	if fileExists(filepath.Join(projectRoot, "pytest.ini")) || fileExists(filepath.Join(projectRoot, "conftest.py")) {
		return 0
	}
	if hasTestsDir(projectRoot) {
		return 30
	}
	return 0
}

func (Unittest) SuiteCommand(root string, level TestLevel, env map[string]string) (TestCommand, error) {
	// unittest discover has no marker/tag filtering mechanism, so unlike
	// pytest the suite command is the same regardless of level.
	return TestCommand{Program: "python3", Args: []string{"-m", "unittest", "discover", "-v", "-s", "."}}, nil
}

func (Unittest) SingleTestCommand(root, testName string) (TestCommand, error) {
	return TestCommand{Program: "python3", Args: []string{"-m", "unittest", "-v", testName}}, nil
}

func (Unittest) ParseOutput(stdout, stderr string, exitCode int) types.TestResult {
	result := types.TestResult{}
	lines := strings.Split(stderr, "\n")
	if !strings.Contains(stderr, " ... ") && strings.Contains(stdout, " ... ") {
		lines = strings.Split(stdout, "\n")
	}

	var currentFailure *types.TestFailure
	var messageLines []string

	flush := func() {
		if currentFailure != nil {
			currentFailure.Message = strings.TrimSpace(strings.Join(messageLines, "\n"))
			result.Failures = append(result.Failures, *currentFailure)
			currentFailure = nil
			messageLines = nil
		}
	}

	scanner := bufio.NewScanner(strings.NewReader(strings.Join(lines, "\n")))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.Contains(line, " ... ok"):
			flush()
			name := strings.TrimSpace(strings.SplitN(line, " ... ", 2)[0])
			result.Summary.Passed++
			result.AllTests = append(result.AllTests, types.TestDetail{Name: name, Status: types.TestStatusPass})
		case strings.Contains(line, " ... FAIL"), strings.Contains(line, " ... ERROR"):
			flush()
			name := strings.TrimSpace(strings.SplitN(line, " ... ", 2)[0])
			result.Summary.Failed++
			currentFailure = &types.TestFailure{Name: name, RerunToken: name}
			result.AllTests = append(result.AllTests, types.TestDetail{Name: name, Status: types.TestStatusFail})
		case strings.Contains(line, " ... skipped"):
			flush()
			name := strings.TrimSpace(strings.SplitN(line, " ... ", 2)[0])
			result.Summary.Skipped++
			result.AllTests = append(result.AllTests, types.TestDetail{Name: name, Status: types.TestStatusSkip})
		case currentFailure != nil && strings.TrimSpace(line) != "" && !strings.HasPrefix(line, "==="):
			messageLines = append(messageLines, line)
		}
	}
	flush()

	combined := stdout + "\n" + stderr
	if m := unittestDurationRe.FindStringSubmatch(combined); m != nil {
		if secs, err := strconv.ParseFloat(m[1], 64); err == nil {
			result.Summary.DurationMs = int64(secs * 1000)
		}
	}

	if len(result.AllTests) == 0 && exitCode != 0 {
		result.Summary.Failed = 1
		result.Failures = append(result.Failures, types.TestFailure{Name: "unittest", Message: "unittest exited non-zero with no parseable test lines"})
	}
	return result
}

func (Unittest) SuggestTraces(failure types.TestFailure) []string {
	return suggestTracesFromFile(failure.File)
}

func (Unittest) CaptureStacks(pid int) []types.ThreadStack { return nil }

func (Unittest) DefaultTimeout(level TestLevel) int64 {
	switch level {
	case LevelUnit:
		return 60_000
	case LevelIntegration:
		return 180_000
	case LevelE2E:
		return 300_000
	default:
		return 120_000
	}
}

func (Unittest) UpdateProgress(line string, progress *ProgressState) {}
