// File: config/mount.go
package config

import "sort"

// mountingPoint is what a schema mounts at an absolute dotted path: either
// a config prefix or a parameter.
type mountingPoint struct {
	isParam bool
	// isCanonical is true when at least one param mounted here under its
	// canonical (non-alias) name.
	isCanonical bool
	// expecting is the intersection of accepted types of all params
	// mounted at this path. Meaningless for config mounts.
	expecting BasicTypes
}

// mountingPoints indexes mounting points two ways: by exact dotted path,
// and in a total order in which a path and all its `_`-flattened spellings
// are adjacent, enabling reverse lookup of flat keys like `api_limits_max`.
type mountingPoints struct {
	paths   map[string]mountingPoint
	ordered []string
}

func newMountingPoints() *mountingPoints {
	return &mountingPoints{paths: make(map[string]mountingPoint)}
}

func (mp *mountingPoints) get(path string) (mountingPoint, bool) {
	m, ok := mp.paths[path]
	return m, ok
}

func (mp *mountingPoints) insert(path string, m mountingPoint) {
	if _, exists := mp.paths[path]; !exists {
		idx := sort.Search(len(mp.ordered), func(i int) bool {
			return kvPathCompare(mp.ordered[i], path) >= 0
		})
		mp.ordered = append(mp.ordered, "")
		copy(mp.ordered[idx+1:], mp.ordered[idx:])
		mp.ordered[idx] = path
	}
	mp.paths[path] = m
}

// kvMatch is a mounted path equivalent to a queried flat key.
type kvMatch struct {
	path  string
	mount mountingPoint
}

// kvMatches returns every mounted path whose `_`-flattened spelling equals
// the supplied flat key. Equivalent paths are contiguous in the order, with
// the all-underscore spelling greatest, so a backward scan from the upper
// bound suffices.
func (mp *mountingPoints) kvMatches(key string) []kvMatch {
	var matches []kvMatch
	upper := sort.Search(len(mp.ordered), func(i int) bool {
		return kvPathCompare(mp.ordered[i], key) > 0
	})
	for i := upper - 1; i >= 0 && kvEquivalent(mp.ordered[i], key); i-- {
		matches = append(matches, kvMatch{path: mp.ordered[i], mount: mp.paths[mp.ordered[i]]})
	}
	return matches
}

func (mp *mountingPoints) extend(other *mountingPoints) {
	for _, path := range other.ordered {
		mp.insert(path, other.paths[path])
	}
}

// kvPathCompare orders dotted paths by their `_`-substituted spelling, then
// by length, breaking exact-spelling ties so that `.` sorts just below `_`.
// Under this order `a.b` < `a_b` while both stay adjacent, which is what
// kvMatches relies on.
func kvPathCompare(a, b string) int {
	tie := 0
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		ca, cb := a[i], b[i]
		if tie == 0 {
			if ca == '.' && cb != '.' {
				tie = -1
			} else if cb == '.' && ca != '.' {
				tie = 1
			}
		}
		if ca == '.' {
			ca = '_'
		}
		if cb == '.' {
			cb = '_'
		}
		if ca != cb {
			if ca < cb {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return tie
	}
}

// kvEquivalent reports whether two paths spell the same flat key.
func kvEquivalent(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if ca == '.' {
			ca = '_'
		}
		if cb == '.' {
			cb = '_'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
