package adapters

import "testing"

func TestUnittestParseVerboseOutput(t *testing.T) {
	stderr := "test_add (tests.test_math.MathTests) ... ok\n" +
		"test_sub (tests.test_math.MathTests) ... FAIL\n" +
		"======================================================================\n" +
		"FAIL: test_sub (tests.test_math.MathTests)\n" +
		"AssertionError: 1 != 2\n"
	result := (Unittest{}).ParseOutput("", stderr, 1)
	if result.Summary.Passed != 1 || result.Summary.Failed != 1 {
		t.Fatalf("unexpected summary: %+v", result.Summary)
	}
}

func TestUnittestParsesSummaryDuration(t *testing.T) {
	stderr := "test_add (tests.test_math.MathTests) ... ok\n" +
		"\n----------------------------------------------------------------------\n" +
		"Ran 1 test in 0.012s\n\nOK\n"
	result := (Unittest{}).ParseOutput("", stderr, 0)
	if result.Summary.DurationMs != 12 {
		t.Fatalf("expected duration 12ms, got %d", result.Summary.DurationMs)
	}
}

func TestUnittestYieldsToPytest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pytest.ini", "[pytest]\n")
	if score := (Unittest{}).Detect(dir, ""); score != 0 {
		t.Fatalf("expected unittest to yield to pytest config, got %d", score)
	}
}
