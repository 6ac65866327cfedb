package adapters

import "testing"

func TestGenericAlwaysDetects(t *testing.T) {
	if score := (Generic{}).Detect("/anything", ""); score != 1 {
		t.Fatalf("expected confidence 1, got %d", score)
	}
}

func TestGenericParseFailureDetection(t *testing.T) {
	stderr := "FAIL: test_something at tests/test.py:42\nAssertionError: expected 1 got 2\n"
	result := (Generic{}).ParseOutput("", stderr, 1)
	if result.Summary.Failed != 1 || len(result.Failures) != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestGenericParseNoFailurePatternButNonZeroExit(t *testing.T) {
	result := (Generic{}).ParseOutput("all good", "", 1)
	if result.Summary.Failed != 1 {
		t.Fatalf("expected synthetic failure on nonzero exit, got %+v", result.Summary)
	}
}
