package adapters

import (
	"path/filepath"
	"strings"
)

// suggestTracesFromFile implements the shared suggest-traces
// heuristic: an exact "@file:<basename>" guess plus a module-wildcard
// guess derived by stripping test_/.test/.spec from the file stem.
func suggestTracesFromFile(file string) []string {
	if file == "" {
		return nil
	}
	base := filepath.Base(file)
	out := []string{"@file:" + base}

	stem := strings.TrimSuffix(base, filepath.Ext(base))
	stem = strings.TrimSuffix(stem, ".test")
	stem = strings.TrimSuffix(stem, ".spec")
	stem = strings.TrimPrefix(stem, "test_")
	stem = strings.TrimSuffix(stem, "_test")
	if stem != "" {
		out = append(out, stem+".*")
	}
	return out
}
