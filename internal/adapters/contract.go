// Package adapters implements the closed Adapter Set: one driver per
// supported test framework, each satisfying the TestAdapter contract.
// The set is a plain slice of values (a record of function pointers),
// not a class hierarchy — adding a framework means adding an entry to
// the registry, never editing a type switch, mirroring the closed
// []Definition registries used elsewhere in the example pack.
package adapters

import (
	"strobe/internal/types"
)

// TestLevel narrows a run to a framework-idiomatic subset.
type TestLevel string

const (
	LevelUnit        TestLevel = "unit"
	LevelIntegration TestLevel = "integration"
	LevelE2E         TestLevel = "e2e"
)

// TestCommand is the program + args + env an adapter wants the Runner
// to execute.
type TestCommand struct {
	Program string
	Args    []string
	Env     map[string]string
}

// ProgressState accumulates streamed-progress information an adapter
// may want to surface while a run is in flight (used by Vitest's
// STROBE_TEST stderr fallback and Deno's "test <name> ..." lines).
type ProgressState struct {
	Seen     []string
	Warnings []string
}

// TestAdapter is the contract every framework driver implements.
type TestAdapter interface {
	// Detect returns a confidence score 0..100 that project_root (and
	// optionally an explicit command) is owned by this framework. It
	// must be a pure function of project_root's contents and command.
	Detect(projectRoot, command string) int

	Name() string

	SuiteCommand(root string, level TestLevel, env map[string]string) (TestCommand, error)
	SingleTestCommand(root, testName string) (TestCommand, error)

	ParseOutput(stdout, stderr string, exitCode int) types.TestResult

	SuggestTraces(failure types.TestFailure) []string

	// CaptureStacks returns framework-specific stacks for pid. Every
	// adapter in this package returns nil; the Runner does not call it
	// and takes native stacks from tracer.Client.CaptureNativeStacks.
	CaptureStacks(pid int) []types.ThreadStack

	DefaultTimeout(level TestLevel) int64

	// UpdateProgress is an optional streaming hook invoked once per
	// output line while a run is in flight; adapters that don't need
	// it implement it as a no-op.
	UpdateProgress(line string, progress *ProgressState)
}
