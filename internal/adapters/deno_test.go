package adapters

import "testing"

const denoPassJUnit = `<?xml version="1.0" encoding="UTF-8"?>
<testsuites name="deno test" tests="2" failures="0" time="0.035">
  <testsuite name="math_test.ts" tests="2" failures="0" time="0.030">
    <testcase name="adds two numbers" classname="math_test.ts" time="0.010"/>
    <testcase name="subtracts two numbers" classname="math_test.ts" time="0.008"/>
  </testsuite>
</testsuites>`

func TestDenoParseWithHumanPreamble(t *testing.T) {
	output := "running 2 tests from ./math_test.ts\ntest adds ... ok (5ms)\ntest subs ... ok (3ms)\n\n" + denoPassJUnit
	result := (Deno{}).ParseOutput(output, "", 0)
	if result.Summary.Passed != 2 || result.Summary.Failed != 0 {
		t.Fatalf("unexpected summary: %+v", result.Summary)
	}
}

func TestDenoParseXMLInStderr(t *testing.T) {
	result := (Deno{}).ParseOutput("", denoPassJUnit, 0)
	if result.Summary.Passed != 2 {
		t.Fatalf("expected XML in stderr to be parsed, got %+v", result.Summary)
	}
}

func TestDenoParseNoXMLFallback(t *testing.T) {
	result := (Deno{}).ParseOutput("", "error: Module not found", 1)
	if result.Summary.Failed != 1 {
		t.Fatalf("expected synthetic failure, got %+v", result.Summary)
	}
}

func TestDenoUpdateProgressTracksOutcome(t *testing.T) {
	progress := &ProgressState{}
	(Deno{}).UpdateProgress("test adds two numbers ... ok (5ms)", progress)
	if len(progress.Seen) != 1 || progress.Seen[0] != "ok:adds two numbers" {
		t.Fatalf("unexpected progress state: %+v", progress.Seen)
	}
}
