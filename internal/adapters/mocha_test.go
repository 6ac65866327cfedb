package adapters

import "testing"

const mochaFailJSON = `{
    "stats": { "suites": 1, "tests": 2, "passes": 1, "failures": 1, "pending": 0, "duration": 80 },
    "passes": [
        { "title": "adds numbers", "fullTitle": "Calculator adds numbers", "duration": 5, "file": "test/calc.test.js" }
    ],
    "failures": [
        {
            "title": "multiplies",
            "fullTitle": "Calculator multiplies",
            "duration": 8,
            "file": "test/calc.test.js",
            "err": {
                "message": "expected 5 to equal 6",
                "stack": "AssertionError: expected 5 to equal 6\n    at Context.<anonymous> (test/calc.test.js:15:10)"
            }
        }
    ],
    "pending": []
}`

func TestMochaParsePassingAndFailing(t *testing.T) {
	result := (Mocha{}).ParseOutput(mochaFailJSON, "", 1)
	if result.Summary.Passed != 1 || result.Summary.Failed != 1 {
		t.Fatalf("unexpected summary: %+v", result.Summary)
	}
	f := result.Failures[0]
	if f.Name != "Calculator multiplies" {
		t.Fatalf("unexpected name: %q", f.Name)
	}
	if f.Line != 15 {
		t.Fatalf("expected line extracted from stack, got %d", f.Line)
	}
	if f.RerunToken != "Calculator multiplies" {
		t.Fatalf("expected rerun token set, got %q", f.RerunToken)
	}
}

func TestMochaParseWithNoisyPreamble(t *testing.T) {
	noisy := "Starting tests...\nconsole.log('hello')\n" + mochaFailJSON
	result := (Mocha{}).ParseOutput(noisy, "", 1)
	if result.Summary.Failed != 1 {
		t.Fatalf("expected failure to survive noisy preamble, got %+v", result.Summary)
	}
}

func TestMochaDetectYieldsToVitest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.json", `{"devDependencies": {"mocha": "^10.0.0", "vitest": "^1.0.0"}}`)
	if score := (Mocha{}).Detect(dir, ""); score != 0 {
		t.Fatalf("expected mocha to yield to vitest, got %d", score)
	}
}
