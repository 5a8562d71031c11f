// internal/devactivity/detect.go

// Package devactivity counts test and build invocations in the window's
// history lines. Matched text is never stored, only the two counts.
package devactivity

import "regexp"

// Counts is the detector's contribution to an hourly snapshot.
type Counts struct {
	TestRuns int
	Builds   int
}

var testPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\s*(sudo\s+)?go\s+test\b`),
	regexp.MustCompile(`^\s*(sudo\s+)?(python3?\s+-m\s+)?pytest\b`),
	regexp.MustCompile(`^\s*(npm|yarn|pnpm)\s+(run\s+)?test\b`),
	regexp.MustCompile(`^\s*cargo\s+test\b`),
	regexp.MustCompile(`^\s*make\s+test\b`),
	regexp.MustCompile(`^\s*(npx\s+)?jest\b`),
	regexp.MustCompile(`^\s*(bundle\s+exec\s+)?rspec\b`),
	regexp.MustCompile(`^\s*mvn\s+.*\btest\b`),
	regexp.MustCompile(`^\s*(\./)?gradlew?\s+.*\btest\b`),
	regexp.MustCompile(`^\s*swift\s+test\b`),
}

var buildPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\s*(sudo\s+)?go\s+(build|install)\b`),
	// `make test` never reaches this set; test patterns are tried first.
	regexp.MustCompile(`^\s*make\b`),
	regexp.MustCompile(`^\s*(npm|yarn|pnpm)\s+run\s+build\b`),
	regexp.MustCompile(`^\s*cargo\s+build\b`),
	regexp.MustCompile(`^\s*mvn\s+.*\b(package|install|compile)\b`),
	regexp.MustCompile(`^\s*(\./)?gradlew?\s+.*\b(build|assemble)\b`),
	regexp.MustCompile(`^\s*docker\s+build\b`),
	regexp.MustCompile(`^\s*xcodebuild\b`),
	regexp.MustCompile(`^\s*swift\s+build\b`),
}

// Scan classifies each line against the test and build signature sets.
// A line counts at most once per class; test matches win over build matches
// so `make test` is a test run, not a build.
func Scan(lines []string) Counts {
	var c Counts
	for _, line := range lines {
		if matchesAny(testPatterns, line) {
			c.TestRuns++
			continue
		}
		if matchesAny(buildPatterns, line) {
			c.Builds++
		}
	}
	return c
}

func matchesAny(patterns []*regexp.Regexp, line string) bool {
	for _, p := range patterns {
		if p.MatchString(line) {
			return true
		}
	}
	return false
}
