package tracer

import "strings"

// ExpandUserCodePattern expands the special "@usercode" pattern to
// "<project_root>/**", the one piece of pattern syntax the core itself
// is responsible for rather than the tracer runtime.
func ExpandUserCodePattern(pattern, projectRoot string) string {
	if pattern == "@usercode" {
		return strings.TrimRight(projectRoot, "/") + "/**"
	}
	return pattern
}

// MatchModuleFunction reports whether a "mod::fn" pattern matches a
// given module/function pair, honoring single-segment "*" and
// any-depth "**" wildcards the way the tracer's exact/wildcard
// matching is documented to behave. This mirrors what the runtime is
// assumed to do internally and lets the core pre-validate / test
// pattern semantics without a live tracer.
func MatchModuleFunction(pattern, module, function string) bool {
	parts := strings.SplitN(pattern, "::", 2)
	if len(parts) != 2 {
		return false
	}
	return matchSegment(parts[0], module) && matchSegment(parts[1], function)
}

func matchSegment(pattern, value string) bool {
	if pattern == "**" {
		return true
	}
	patternParts := strings.Split(pattern, "/")
	valueParts := strings.Split(value, "/")
	return matchParts(patternParts, valueParts)
}

func matchParts(pattern, value []string) bool {
	if len(pattern) == 0 {
		return len(value) == 0
	}
	head := pattern[0]
	if head == "**" {
		if len(pattern) == 1 {
			return true
		}
		for i := 0; i <= len(value); i++ {
			if matchParts(pattern[1:], value[i:]) {
				return true
			}
		}
		return false
	}
	if len(value) == 0 {
		return false
	}
	if head != "*" && head != value[0] {
		return false
	}
	return matchParts(pattern[1:], value[1:])
}

// MatchFilePattern reports whether "@file:<basename>" matches the
// basename of sourceFile (no directory components considered).
func MatchFilePattern(pattern, sourceFile string) bool {
	const prefix = "@file:"
	if !strings.HasPrefix(pattern, prefix) {
		return false
	}
	basename := pattern[len(prefix):]
	idx := strings.LastIndexByte(sourceFile, '/')
	fileBase := sourceFile
	if idx >= 0 {
		fileBase = sourceFile[idx+1:]
	}
	return fileBase == basename
}
