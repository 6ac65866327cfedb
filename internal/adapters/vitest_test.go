package adapters

import "testing"

func TestVitestParsesStreamFallbackWhenJSONMissing(t *testing.T) {
	stderr := "some hung teardown noise\n" +
		vitestStreamPrefix + `{"name":"adds","status":"passed","durationMs":5}` + "\n" +
		vitestStreamPrefix + `{"name":"subs","status":"failed","durationMs":3,"message":"expected 2 got 3"}` + "\n"
	result := (Vitest{}).ParseOutput("not json", stderr, 1)
	if result.Summary.Passed != 1 || result.Summary.Failed != 1 {
		t.Fatalf("unexpected summary: %+v", result.Summary)
	}
	if result.Failures[0].Name != "subs" {
		t.Fatalf("unexpected failure name: %q", result.Failures[0].Name)
	}
}

func TestVitestDetectViaConfigFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "vitest.config.ts", "export default {}")
	if score := (Vitest{}).Detect(dir, ""); score != 85 {
		t.Fatalf("expected confidence 85, got %d", score)
	}
}
