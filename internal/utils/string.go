package utils

import (
	"fmt"
	"sort"
	"strings"
)

// IsSeparator checks if a rune separates list items on an input line
func IsSeparator(r rune) bool {
	return r == ' ' || r == ',' || r == ';' || r == '\t'
}

// IsResidue reports whether b is an upper-case residue letter
func IsResidue(b byte) bool {
	return 'A' <= b && b <= 'Z'
}

// NormalizeSequence upper-cases letters in place and drops everything that is not a
// residue (digits, gaps, stop codons, whitespace).
func NormalizeSequence(seq []byte) []byte {
	out := seq[:0]
	for _, b := range seq {
		if 'a' <= b && b <= 'z' {
			b -= 'a' - 'A'
		}
		if IsResidue(b) {
			out = append(out, b)
		}
	}
	return out
}

// ParseTags splits a tag list, upper-cases each tag and returns them
// sorted and deduplicated. Lengths are not checked here.
func ParseTags(s string) []string {
	fields := strings.FieldsFunc(s, IsSeparator)
	seen := make(map[string]bool, len(fields))
	tags := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ToUpper(f)
		if seen[f] {
			continue
		}
		seen[f] = true
		tags = append(tags, f)
	}
	sort.Strings(tags)
	return tags
}

// IsRepetitive checks if a sequence is a single repeated residue ("KKKK").
// Such records blow up the shared-prefix walk and are worth a warning.
func IsRepetitive(s []byte) bool {
	if len(s) <= 2 {
		return false
	}
	first := s[0]
	for i := 1; i < len(s); i++ {
		if s[i] != first {
			return false
		}
	}
	return true
}

// FormatWithCommas formats an integer with comma separators
func FormatWithCommas(n int) string {
	if n < 0 {
		return "-" + FormatWithCommas(-n)
	}
	str := fmt.Sprintf("%d", n)
	if n < 1000 {
		return str
	}
	var b strings.Builder
	for i, char := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(char)
	}
	return b.String()
}
