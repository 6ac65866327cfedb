package adapters

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCargoDetectRequiresCargoToml(t *testing.T) {
	dir := t.TempDir()
	if score := (Cargo{}).Detect(dir, ""); score != 0 {
		t.Fatalf("expected 0 confidence without Cargo.toml, got %d", score)
	}
	if err := os.WriteFile(filepath.Join(dir, "Cargo.toml"), []byte("[package]\nname=\"x\""), 0o644); err != nil {
		t.Fatalf("write Cargo.toml: %v", err)
	}
	if score := (Cargo{}).Detect(dir, ""); score != 90 {
		t.Fatalf("expected confidence 90 with Cargo.toml, got %d", score)
	}
}

func TestCargoParseOutputOkAndFailed(t *testing.T) {
	stdout := `{"type":"test","event":"ok","name":"math::adds","exec_time":0.005}
{"type":"test","event":"failed","name":"math::subs","exec_time":0.008,"stdout":"assertion failed: left == right"}
{"type":"suite","event":"ok"}`
	result := (Cargo{}).ParseOutput(stdout, "", 1)
	if result.Summary.Passed != 1 || result.Summary.Failed != 1 {
		t.Fatalf("unexpected summary: %+v", result.Summary)
	}
	if len(result.Failures) != 1 || result.Failures[0].Name != "math::subs" {
		t.Fatalf("unexpected failures: %+v", result.Failures)
	}
}

func TestCargoParseOutputSyntheticFailureOnCrash(t *testing.T) {
	result := (Cargo{}).ParseOutput("", "", 101)
	if result.Summary.Failed != 1 || len(result.Failures) != 1 {
		t.Fatalf("expected synthetic failure, got %+v", result)
	}
}
