package adapters

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"strobe/internal/types"
)

// junitTestsuites mirrors the subset of the JUnit dialect consumed:
// <testsuites>/<testsuite>/<testcase> with optional <failure> or
// <skipped> children. A bare <testsuite> root (no wrapping
// <testsuites>) is also tolerated by trying both unmarshal shapes.
type junitTestsuites struct {
	XMLName    xml.Name        `xml:"testsuites"`
	Testsuites []junitTestsuite `xml:"testsuite"`
}

type junitTestsuite struct {
	Testcases []junitTestcase `xml:"testcase"`
}

type junitTestcase struct {
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *junitFailure `xml:"failure"`
	Skipped   *junitSkipped `xml:"skipped"`
}

type junitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

type junitSkipped struct{}

// parseJUnitXML parses the shared JUnit dialect (used by Bun and
// Deno). Self-closing <testcase/> counts as a pass. XML entities are
// unescaped in failure bodies by encoding/xml itself during decode.
// A human preamble before the first '<' is tolerated by trimming to
// the first tag.
func parseJUnitXML(raw string) types.TestResult {
	trimmed := trimToFirstTag(raw)

	testcases, err := decodeJUnit(trimmed)
	if err != nil {
		return emptyResultWithSyntheticFailure(err)
	}

	result := types.TestResult{}
	for _, tc := range testcases {
		durationMs := secondsToMillis(tc.Time)
		name := tc.Name
		switch {
		case tc.Failure != nil:
			result.Summary.Failed++
			msg := strings.TrimSpace(tc.Failure.Body)
			if msg == "" {
				msg = tc.Failure.Message
			}
			file := tc.Classname
			if file == "" {
				file = extractFileHint(msg)
			}
			result.Failures = append(result.Failures, types.TestFailure{
				Name:            name,
				File:            file,
				Message:         msg,
				RerunToken:      name,
				SuggestedTraces: suggestTracesFromFile(file),
			})
			result.AllTests = append(result.AllTests, types.TestDetail{
				Name: name, Status: types.TestStatusFail, DurationMs: durationMs, Message: msg,
			})
		case tc.Skipped != nil:
			result.Summary.Skipped++
			result.AllTests = append(result.AllTests, types.TestDetail{
				Name: name, Status: types.TestStatusSkip, DurationMs: durationMs,
			})
		default:
			result.Summary.Passed++
			result.AllTests = append(result.AllTests, types.TestDetail{
				Name: name, Status: types.TestStatusPass, DurationMs: durationMs,
			})
		}
		result.Summary.DurationMs += durationMs
	}
	return result
}

// decodeJUnit walks either a <testsuites> root or a bare <testsuite>
// root and returns the flattened test cases.
func decodeJUnit(raw string) ([]junitTestcase, error) {
	var suites junitTestsuites
	if err := xml.Unmarshal([]byte(raw), &suites); err == nil && len(suites.Testsuites) > 0 {
		var out []junitTestcase
		for _, s := range suites.Testsuites {
			out = append(out, s.Testcases...)
		}
		return out, nil
	}
	var single junitTestsuite
	if err := xml.Unmarshal([]byte(raw), &single); err != nil {
		return nil, err
	}
	return single.Testcases, nil
}

func trimToFirstTag(s string) string {
	idx := strings.IndexByte(s, '<')
	if idx < 0 {
		return s
	}
	return s[idx:]
}

func secondsToMillis(raw string) int64 {
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return int64(secs * 1000)
}

// extractFileHint pulls a plausible source file name out of a failure
// body for suggest-traces purposes.
func extractFileHint(body string) string {
	for _, token := range strings.FieldsFunc(body, func(r rune) bool {
		return r == '(' || r == ')' || r == ' ' || r == '\n' || r == '\t'
	}) {
		if strings.Contains(token, ":") && (strings.Contains(token, ".test.") || strings.Contains(token, ".spec.") || strings.HasSuffix(token, ".rs") || strings.HasSuffix(token, ".py")) {
			parts := strings.Split(token, ":")
			return parts[0]
		}
	}
	return ""
}

func emptyResultWithSyntheticFailure(err error) types.TestResult {
	return types.TestResult{
		Summary: types.Summary{Failed: 1},
		Failures: []types.TestFailure{{
			Name:    "parse-error",
			Message: fmt.Sprintf("failed to parse JUnit XML: %v", err),
		}},
	}
}
