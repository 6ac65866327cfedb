package adapters

import (
	"os"
	"path/filepath"
	"strings"

	"strobe/internal/types"
)

// Bun drives `bun test --reporter=junit`, sharing the JUnit parser
// with Deno. Bun as a package manager does not imply Bun as a test
// runner, so a Vitest/Jest marker in package.json suppresses this
// adapter unless the scripts explicitly invoke `bun test`.
type Bun struct{}

func (Bun) Name() string { return "bun" }

func (Bun) Detect(projectRoot, command string) int {
	pkg, pkgErr := os.ReadFile(filepath.Join(projectRoot, "package.json"))
	if pkgErr == nil {
		content := string(pkg)
		if strings.Contains(content, `"vitest"`) || strings.Contains(content, `"jest"`) {
			if strings.Contains(content, `"bun test"`) || strings.Contains(content, `"bun:test"`) {
				return 90
			}
			return 0
		}
	}
	if fileExists(filepath.Join(projectRoot, "bun.lockb")) || fileExists(filepath.Join(projectRoot, "bun.lock")) {
		return 85
	}
	if pkgErr == nil {
		content := string(pkg)
		if strings.Contains(content, `"bun test"`) || strings.Contains(content, `"bun:test"`) {
			return 90
		}
		if strings.Contains(content, `"bun"`) {
			return 75
		}
	}
	return 0
}

// SuiteCommand writes the JUnit report to /dev/stdout, so it needs a
// platform that provides /dev/stdout; there is no pipe-based fallback.
func (Bun) SuiteCommand(root string, level TestLevel, env map[string]string) (TestCommand, error) {
	return TestCommand{Program: "bun", Args: []string{"test", "--reporter=junit", "--reporter-outfile=/dev/stdout"}}, nil
}

func (Bun) SingleTestCommand(root, testName string) (TestCommand, error) {
	return TestCommand{
		Program: "bun",
		Args:    []string{"test", "--reporter=junit", "--reporter-outfile=/dev/stdout", "--test-name-pattern", testName},
	}, nil
}

func (Bun) ParseOutput(stdout, stderr string, exitCode int) types.TestResult {
	return parseJUnitXML(stdout)
}

func (Bun) SuggestTraces(failure types.TestFailure) []string {
	return suggestTracesFromFile(failure.File)
}

func (Bun) CaptureStacks(pid int) []types.ThreadStack { return nil }

func (Bun) DefaultTimeout(level TestLevel) int64 {
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

func (Bun) UpdateProgress(line string, progress *ProgressState) {}
