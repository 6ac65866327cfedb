package adapters

import "testing"

const jestFailJSON = `{
    "success": false, "startTime": 1000000,
    "numTotalTests": 2, "numPassedTests": 1, "numFailedTests": 1, "numPendingTests": 0,
    "testResults": [{
        "testFilePath": "/project/src/__tests__/calc.test.js",
        "testResults": [
            {
                "title": "multiplies",
                "status": "failed",
                "ancestorTitles": ["Calculator", "multiply"],
                "duration": 8,
                "failureMessages": [
                    "Error: expect(received).toBe(expected)\nExpected: 6\nReceived: 5\n    at Object.<anonymous> (/project/src/__tests__/calc.test.js:15:5)"
                ]
            },
            {"title": "adds", "status": "passed", "ancestorTitles": ["Calculator"], "duration": 5, "failureMessages": []}
        ]
    }]
}`

func TestJestParseFailingWithLocation(t *testing.T) {
	result := (Jest{}).ParseOutput(jestFailJSON, "", 1)
	if result.Summary.Failed != 1 {
		t.Fatalf("unexpected summary: %+v", result.Summary)
	}
	f := result.Failures[0]
	if f.Name != "Calculator multiply multiplies" {
		t.Fatalf("unexpected name: %q", f.Name)
	}
	if f.Line != 15 {
		t.Fatalf("expected line 15 from stack trace, got %d", f.Line)
	}
}

func TestJestDetectYieldsConfidenceToVitest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.json", `{"devDependencies": {"jest": "^29.0.0", "vitest": "^1.0.0"}}`)
	if score := (Jest{}).Detect(dir, ""); score != 70 {
		t.Fatalf("expected reduced confidence 70 when vitest also present, got %d", score)
	}
}
