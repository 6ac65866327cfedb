package adapters

import (
	"strings"
	"testing"
)

const bunFailJUnit = `<?xml version="1.0" encoding="UTF-8"?>
<testsuites name="bun test" tests="2" failures="1" time="0.060">
  <testsuite name="calc.test.ts" tests="2" failures="1" time="0.050">
    <testcase name="Math > multiplies" classname="calc.test.ts" time="0.008">
      <failure message="Expected 6, got 5" type="AssertionError">
AssertionError: Expected 6, got 5
    at &lt;anonymous&gt; (calc.test.ts:12:7)
      </failure>
    </testcase>
    <testcase name="Math > adds" classname="calc.test.ts" time="0.005"/>
  </testsuite>
</testsuites>`

func TestBunParseFailingJUnit(t *testing.T) {
	result := (Bun{}).ParseOutput(bunFailJUnit, "", 1)
	if result.Summary.Failed != 1 || result.Summary.Passed != 1 {
		t.Fatalf("unexpected summary: %+v", result.Summary)
	}
	f := result.Failures[0]
	if f.Name != "Math > multiplies" {
		t.Fatalf("unexpected name: %q", f.Name)
	}
	if f.File != "calc.test.ts" {
		t.Fatalf("expected file from classname, got %q", f.File)
	}
}

func TestBunParseXMLEntitiesUnescaped(t *testing.T) {
	result := (Bun{}).ParseOutput(bunFailJUnit, "", 1)
	if got := result.Failures[0].Message; !strings.Contains(got, "<anonymous>") {
		t.Fatalf("expected decoded entities in message, got %q", got)
	}
}

func TestBunDetectYieldsUnlessExplicitBunTest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.json", `{"devDependencies": {"vitest": "^1.0.0"}}`)
	if score := (Bun{}).Detect(dir, ""); score != 0 {
		t.Fatalf("expected bun to yield to vitest, got %d", score)
	}
	writeFile(t, dir, "package.json", `{"devDependencies": {"vitest": "^1.0.0"}, "scripts": {"test": "bun test"}}`)
	if score := (Bun{}).Detect(dir, ""); score < 90 {
		t.Fatalf("expected high confidence with explicit bun test script, got %d", score)
	}
}

