package adapters

import (
	"path/filepath"
	"strings"

	"strobe/internal/types"
)

// Deno drives `deno test --reporter=junit`, sharing the JUnit parser
// with Bun. Deno sometimes emits human-readable progress lines before
// the XML and occasionally writes the report to stderr instead of
// stdout.
type Deno struct{}

func (Deno) Name() string { return "deno" }

func (Deno) Detect(projectRoot, command string) int {
	if fileExists(filepath.Join(projectRoot, "deno.json")) || fileExists(filepath.Join(projectRoot, "deno.jsonc")) {
		return 92
	}
	if fileExists(filepath.Join(projectRoot, "deno.lock")) {
		return 85
	}
	return 0
}

func (Deno) SuiteCommand(root string, level TestLevel, env map[string]string) (TestCommand, error) {
	return TestCommand{Program: "deno", Args: []string{"test", "--reporter=junit"}}, nil
}

func (Deno) SingleTestCommand(root, testName string) (TestCommand, error) {
	return TestCommand{Program: "deno", Args: []string{"test", "--reporter=junit", "--filter=" + testName}}, nil
}

func extractDenoXML(output string) (string, bool) {
	if pos := strings.Index(output, "<?xml"); pos >= 0 {
		return output[pos:], true
	}
	if pos := strings.Index(output, "<testsuites"); pos >= 0 {
		return output[pos:], true
	}
	return "", false
}

func (Deno) ParseOutput(stdout, stderr string, exitCode int) types.TestResult {
	if xml, ok := extractDenoXML(stdout); ok {
		return denoFillRerun(parseJUnitXML(xml))
	}
	if xml, ok := extractDenoXML(stderr); ok {
		return denoFillRerun(parseJUnitXML(xml))
	}

	preview := stderr
	if len(preview) > 500 {
		preview = preview[:500]
	}
	result := types.TestResult{}
	if preview != "" {
		result.Summary.Failed = 1
		result.Failures = []types.TestFailure{{
			Name:    "Deno test run",
			Message: "could not parse Deno test output (no JUnit XML found).\nstderr: " + preview,
		}}
	}
	return result
}

func denoFillRerun(result types.TestResult) types.TestResult {
	for i := range result.Failures {
		if result.Failures[i].RerunToken == "" {
			result.Failures[i].RerunToken = result.Failures[i].Name
		}
	}
	return result
}

func (Deno) SuggestTraces(failure types.TestFailure) []string {
	if failure.File == "" {
		return nil
	}
	base := filepath.Base(failure.File)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	stem = strings.TrimSuffix(stem, ".test")
	stem = strings.TrimSuffix(stem, ".spec")
	stem = strings.TrimSuffix(stem, "_test")
	traces := []string{"@file:" + base}
	if stem != "" {
		traces = append(traces, stem+".*")
	}
	return traces
}

func (Deno) CaptureStacks(pid int) []types.ThreadStack { return nil }

func (Deno) DefaultTimeout(level TestLevel) int64 {
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

// UpdateProgress tracks Deno's "test <name> ..." / "... ok (Xms)" /
// "... FAILED (Xms)" progress lines, which may appear on one line or
// split across a start line and a completion line.
func (Deno) UpdateProgress(line string, progress *ProgressState) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return
	}
	rest, ok := strings.CutPrefix(trimmed, "test ")
	if !ok {
		return
	}
	dotsPos := strings.LastIndex(rest, " ...")
	if dotsPos < 0 {
		return
	}
	name := rest[:dotsPos]
	after := strings.TrimSpace(rest[dotsPos+4:])
	switch {
	case after == "":
		progress.Seen = append(progress.Seen, "start:"+name)
	case strings.HasPrefix(after, "ok"):
		progress.Seen = append(progress.Seen, "ok:"+name)
	case strings.HasPrefix(after, "FAILED"):
		progress.Seen = append(progress.Seen, "failed:"+name)
	}
}
