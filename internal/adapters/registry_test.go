package adapters

import "testing"

func TestDetectFallsBackToGeneric(t *testing.T) {
	dir := t.TempDir()
	adapter, score := Detect(dir, "")
	if adapter.Name() != "generic" || score != 1 {
		t.Fatalf("expected generic fallback, got %s/%d", adapter.Name(), score)
	}
}

func TestDetectPrefersCargo(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Cargo.toml", "[package]\nname=\"x\"")
	adapter, score := Detect(dir, "")
	if adapter.Name() != "cargo" || score != 90 {
		t.Fatalf("expected cargo at 90, got %s/%d", adapter.Name(), score)
	}
}

func TestByNameFindsAdapter(t *testing.T) {
	a, ok := ByName("jest")
	if !ok || a.Name() != "jest" {
		t.Fatalf("expected to find jest adapter")
	}
	if _, ok := ByName("nonexistent"); ok {
		t.Fatalf("expected no match for unknown name")
	}
}
