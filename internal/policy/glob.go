package policy

import (
	"strings"
	"sync"

	"github.com/gobwas/glob"
)

// MatchGlob reports whether s matches pattern in full. '*' matches any run of
// characters, '?' exactly one, and everything else is literal. Matching keeps
// a single backtrack point, so it runs in O(len(pattern)*len(s)) even for
// patterns with many stars.
func MatchGlob(pattern, s string) (bool, error) {
	if pattern == "" {
		return false, &PolicyError{Kind: InvalidPattern, Value: pattern, Reason: "glob policy requires a pattern"}
	}
	return wildcardMatch([]rune(pattern), []rune(s)), nil
}

func wildcardMatch(p, s []rune) bool {
	pi, si := 0, 0
	star, mark := -1, 0

	for si < len(s) {
		switch {
		case pi < len(p) && (p[pi] == '?' || p[pi] == s[si]) && p[pi] != '*':
			pi++
			si++
		case pi < len(p) && p[pi] == '*':
			star = pi
			mark = si
			pi++
		case star >= 0:
			pi = star + 1
			mark++
			si = mark
		default:
			return false
		}
	}

	for pi < len(p) && p[pi] == '*' {
		pi++
	}
	return pi == len(p)
}

var imageGlobs sync.Map // pattern -> glob.Glob

// matchImagePattern matches a repository against an images filter entry.
// Entries without glob syntax compare literally; otherwise '*' stays within a
// path segment and '**' crosses segments.
func matchImagePattern(pattern, repository string) bool {
	if !strings.ContainsAny(pattern, "*?[{") {
		return pattern == repository
	}

	var g glob.Glob
	if cached, ok := imageGlobs.Load(pattern); ok {
		g = cached.(glob.Glob)
	} else {
		compiled, err := glob.Compile(pattern, '/')
		if err != nil {
			return false
		}
		imageGlobs.Store(pattern, compiled)
		g = compiled
	}
	return g.Match(repository)
}
