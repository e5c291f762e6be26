package policy

// Engine evaluates update policies. The zero value is lenient: versions that
// cannot be parsed are never considered upgrades.
type Engine struct {
	strict bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithStrictVersions makes unparseable versions an UnparseableVersion
// PolicyError instead of a "no".
func WithStrictVersions() Option {
	return func(e *Engine) {
		e.strict = true
	}
}

// NewEngine creates an Engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Strict reports whether unparseable versions are errors.
func (e *Engine) Strict() bool {
	return e.strict
}

// ShouldUpdate reports whether p permits moving from current to candidate.
func (e *Engine) ShouldUpdate(p ResourcePolicy, current, candidate string) (bool, error) {
	switch p.Policy {
	case PolicyForce:
		return true, nil
	case PolicyAll:
		return candidate != current, nil
	case PolicyNone:
		return false, nil
	case PolicyGlob:
		return MatchGlob(p.Pattern, candidate)
	case PolicyPatch, PolicyMinor, PolicyMajor:
		return e.tiered(p.Policy, current, candidate)
	default:
		return false, &PolicyError{Kind: InvalidPattern, Value: string(p.Policy), Reason: "unknown policy"}
	}
}

func (e *Engine) tiered(policy UpdatePolicy, current, candidate string) (bool, error) {
	cur, ok := ParseVersion(current)
	if !ok {
		return e.unparseable(current)
	}
	cand, ok := ParseVersion(candidate)
	if !ok {
		return e.unparseable(candidate)
	}

	sameMajor := cand.Major == cur.Major
	sameMinor := sameMajor && cand.Minor == cur.Minor

	switch policy {
	case PolicyPatch:
		return sameMinor && cand.Patch > cur.Patch, nil
	case PolicyMinor:
		return (sameMajor && cand.Minor > cur.Minor) || (sameMinor && cand.Patch > cur.Patch), nil
	default:
		return cand.Compare(cur) > 0, nil
	}
}

func (e *Engine) unparseable(v string) (bool, error) {
	if e.strict {
		return false, &PolicyError{Kind: UnparseableVersion, Value: v}
	}
	return false, nil
}
