package adapters

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"strobe/internal/types"
)

// Mocha drives `mocha --reporter json`. Mocha's JSON reporter writes
// everything at the end and tests may print arbitrary noise to stdout
// before it, so the report is located by its last "stats" key rather
// than assumed to start at byte 0.
type Mocha struct{}

func (Mocha) Name() string { return "mocha" }

func (Mocha) Detect(projectRoot, command string) int {
	if pkg, err := os.ReadFile(filepath.Join(projectRoot, "package.json")); err == nil {
		if strings.Contains(string(pkg), `"vitest"`) || strings.Contains(string(pkg), `"jest"`) {
			return 0
		}
	}
	for _, cfg := range []string{".mocharc.yml", ".mocharc.yaml", ".mocharc.json", ".mocharc.js", ".mocharc.cjs"} {
		if fileExists(filepath.Join(projectRoot, cfg)) {
			return 90
		}
	}
	if pkg, err := os.ReadFile(filepath.Join(projectRoot, "package.json")); err == nil {
		if strings.Contains(string(pkg), `"mocha"`) {
			return 80
		}
	}
	return 0
}

func (Mocha) SuiteCommand(root string, level TestLevel, env map[string]string) (TestCommand, error) {
	return TestCommand{Program: "npx", Args: []string{"mocha", "--reporter", "json"}}, nil
}

func (Mocha) SingleTestCommand(root, testName string) (TestCommand, error) {
	return TestCommand{Program: "npx", Args: []string{"mocha", "--reporter", "json", "--grep", testName}}, nil
}

type mochaReport struct {
	Stats    mochaStat      `json:"stats"`
	Passes   []mochaTest    `json:"passes"`
	Failures []mochaFailure `json:"failures"`
	Pending  []mochaTest    `json:"pending"`
}

type mochaStat struct {
	Passes   int   `json:"passes"`
	Failures int   `json:"failures"`
	Pending  int   `json:"pending"`
	Duration int64 `json:"duration"`
}

type mochaTest struct {
	Title     string `json:"title"`
	FullTitle string `json:"fullTitle"`
	Duration  *int64 `json:"duration"`
}

type mochaFailure struct {
	Title     string    `json:"title"`
	FullTitle string    `json:"fullTitle"`
	Duration  *int64    `json:"duration"`
	File      string    `json:"file"`
	Err       *mochaErr `json:"err"`
}

type mochaErr struct {
	Message string `json:"message"`
	Stack   string `json:"stack"`
}

var mochaStackRe = regexp.MustCompile(`at\s+\S+\s+\(([^)]+):(\d+):\d+\)`)

// extractMochaJSON finds the last "stats" key, walks back to the
// nearest unmatched '{', and decodes the one JSON object that starts
// there, since passing/pending/failing tests may have printed
// arbitrary text to stdout around the report.
func extractMochaJSON(text string) (mochaReport, bool) {
	statsPos := strings.LastIndex(text, `"stats"`)
	if statsPos < 0 {
		return mochaReport{}, false
	}
	bracePos, depth := -1, 0
	for i := statsPos - 1; i >= 0 && bracePos < 0; i-- {
		switch text[i] {
		case '}':
			depth++
		case '{':
			if depth == 0 {
				bracePos = i
			}
			depth--
		}
	}
	if bracePos < 0 {
		return mochaReport{}, false
	}
	var report mochaReport
	if err := json.NewDecoder(strings.NewReader(text[bracePos:])).Decode(&report); err != nil {
		return mochaReport{}, false
	}
	return report, true
}

func (Mocha) ParseOutput(stdout, stderr string, exitCode int) types.TestResult {
	report, ok := extractMochaJSON(stdout)
	if !ok {
		report, ok = extractMochaJSON(stderr)
	}
	if !ok {
		result := types.TestResult{}
		if exitCode != 0 {
			preview := stderr
			if len(preview) > 500 {
				preview = preview[:500]
			}
			result.Failures = []types.TestFailure{{Name: "Test run crashed", Message: "could not parse mocha JSON output.\nstderr: " + preview}}
		}
		return result
	}

	result := types.TestResult{
		Summary: types.Summary{
			Passed:     report.Stats.Passes,
			Failed:     report.Stats.Failures,
			Skipped:    report.Stats.Pending,
			DurationMs: report.Stats.Duration,
		},
	}

	nameOf := func(title, fullTitle string) string {
		if fullTitle != "" {
			return fullTitle
		}
		return title
	}
	durOf := func(d *int64) int64 {
		if d == nil {
			return 0
		}
		return *d
	}

	for _, t := range report.Passes {
		result.AllTests = append(result.AllTests, types.TestDetail{Name: nameOf(t.Title, t.FullTitle), Status: types.TestStatusPass, DurationMs: durOf(t.Duration)})
	}
	for _, t := range report.Pending {
		result.AllTests = append(result.AllTests, types.TestDetail{Name: nameOf(t.Title, t.FullTitle), Status: types.TestStatusSkip, DurationMs: durOf(t.Duration)})
	}
	for _, f := range report.Failures {
		name := nameOf(f.Title, f.FullTitle)
		message, file, line := "", f.File, 0
		if f.Err != nil {
			message = f.Err.Message
			if m := mochaStackRe.FindStringSubmatch(f.Err.Stack); m != nil {
				file = m[1]
				line, _ = strconv.Atoi(m[2])
			}
		}
		result.Failures = append(result.Failures, types.TestFailure{
			Name: name, File: file, Line: line, Message: message,
			RerunToken:      name,
			SuggestedTraces: suggestTracesFromFile(file),
		})
		result.AllTests = append(result.AllTests, types.TestDetail{Name: name, Status: types.TestStatusFail, DurationMs: durOf(f.Duration), Message: message})
	}
	return result
}

func (Mocha) SuggestTraces(failure types.TestFailure) []string {
	return suggestTracesFromFile(failure.File)
}

func (Mocha) CaptureStacks(pid int) []types.ThreadStack { return nil }

func (Mocha) DefaultTimeout(level TestLevel) int64 {
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

// UpdateProgress records every line that contains "passing" or
// "failing" (mocha's trailing "N passing"/"N failing" summary lines);
// the JSON reporter itself has no incremental output.
func (Mocha) UpdateProgress(line string, progress *ProgressState) {
	trimmed := strings.TrimSpace(line)
	if strings.Contains(trimmed, "passing") || strings.Contains(trimmed, "failing") {
		progress.Seen = append(progress.Seen, trimmed)
	}
}
