package correlation

// Fixed detection policy values.
const (
	LevelError         = "ERROR"
	LevelCritical      = "CRITICAL"
	FailedLoginMessage = "Failed login"
	RunLength          = 3
)

// ExclusionRule suppresses a high-severity row whose message and user both
// match exactly.
type ExclusionRule struct {
	Message string `yaml:"message" json:"message" validate:"required"`
	User    string `yaml:"user" json:"user" validate:"required"`
}

// DefaultExclusions returns the exclusions used when none are configured.
func DefaultExclusions() []ExclusionRule {
	return []ExclusionRule{
		{Message: FailedLoginMessage, User: "bob"},
	}
}

// Policy is the exclusion set shared by every analysis. It is built once and
// never modified, so one Policy may be used from many goroutines.
type Policy struct {
	exclusions []ExclusionRule
	index      map[ExclusionRule]struct{}
}

// NewPolicy builds a policy from a copy of exclusions.
func NewPolicy(exclusions []ExclusionRule) *Policy {
	p := &Policy{
		exclusions: make([]ExclusionRule, 0, len(exclusions)),
		index:      make(map[ExclusionRule]struct{}, len(exclusions)),
	}
	for _, e := range exclusions {
		if _, dup := p.index[e]; dup {
			continue
		}
		p.index[e] = struct{}{}
		p.exclusions = append(p.exclusions, e)
	}
	return p
}

// DefaultPolicy returns a policy holding DefaultExclusions.
func DefaultPolicy() *Policy {
	return NewPolicy(DefaultExclusions())
}

// Exclusions returns a copy of the exclusion set in configured order.
func (p *Policy) Exclusions() []ExclusionRule {
	out := make([]ExclusionRule, len(p.exclusions))
	copy(out, p.exclusions)
	return out
}

// Excluded reports whether the (message, user) pair is on the exclusion list.
func (p *Policy) Excluded(message, user string) bool {
	_, ok := p.index[ExclusionRule{Message: message, User: user}]
	return ok
}
