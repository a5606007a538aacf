package corpus

// Rule decides whether the bond between two adjacent residues is cut.
type Rule interface {
	IsCleavageSite(a, b byte) bool
}

// RuleFunc adapts a plain function to Rule.
type RuleFunc func(a, b byte) bool

// IsCleavageSite calls f(a, b).
func (f RuleFunc) IsCleavageSite(a, b byte) bool { return f(a, b) }

// SiteRule cuts after any residue in Cleave unless the next residue is in Block.
type SiteRule struct {
	cleave [256]bool
	block  [256]bool
}

// NewRule builds a cut-after rule from two residue sets.
func NewRule(cleave, block string) *SiteRule {
	r := &SiteRule{}
	for i := 0; i < len(cleave); i++ {
		r.cleave[cleave[i]] = true
	}
	for i := 0; i < len(block); i++ {
		r.block[block[i]] = true
	}
	return r
}

// Cleave returns the cut-after residues in byte order.
func (r *SiteRule) Cleave() string { return members(&r.cleave) }

// Block returns the residues that suppress a cut, in byte order.
func (r *SiteRule) Block() string { return members(&r.block) }

func members(set *[256]bool) string {
	var out []byte
	for b, in := range set {
		if in {
			out = append(out, byte(b))
		}
	}
	return string(out)
}

// IsCleavageSite implements Rule.
func (r *SiteRule) IsCleavageSite(a, b byte) bool {
	return r.cleave[a] && !r.block[b]
}

// Trypsin cuts after K or R unless followed by P.
func Trypsin() *SiteRule { return NewRule("KR", "P") }
