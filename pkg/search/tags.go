package search

import (
	"fmt"
	"sort"
)

// TagLen is the length of every sequence tag.
const TagLen = 3

// tagSet is a sorted, deduplicated list of tags. The zero value disables filtering.
type tagSet []string

func newTagSet(tags []string) (tagSet, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	set := make([]string, 0, len(tags))
	for _, t := range tags {
		if len(t) != TagLen {
			return nil, fmt.Errorf("%w: tag %q has length %d, want %d", ErrInvalidInput, t, len(t), TagLen)
		}
		set = append(set, t)
	}
	sort.Strings(set)
	out := set[:1]
	for _, t := range set[1:] {
		if t != out[len(out)-1] {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s tagSet) enabled() bool { return len(s) > 0 }

// has reports whether the TagLen bytes in b are a tag.
func (s tagSet) has(b []byte) bool {
	k := sort.Search(len(s), func(i int) bool { return s[i] >= string(b) })
	return k < len(s) && s[k] == string(b)
}
