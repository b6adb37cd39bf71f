package keyspace

import "unicode/utf8"

// MatchGlob reports whether name matches pattern using the two glob
// wildcards KEYS supports: '*' (any run of characters, including none)
// and '?' (exactly one character). There is no escaping; a literal '*'
// or '?' in a key can never be matched precisely.
//
// The matcher is the textbook naive recursive backtracker, not a
// linear-time automaton: a pattern with many '*' runs against a
// pathological name can take exponential time. That tradeoff is
// deliberate here in favor of the simplest possible correct
// implementation, since KEYS is already documented as an
// occasionally-expensive, whole-keyspace operation.
func MatchGlob(pattern, name string) bool {
	return matchGlob(pattern, name)
}

func matchGlob(pattern, name string) bool {
	if pattern == "" {
		return name == ""
	}

	switch pattern[0] {
	case '*':
		// Try consuming zero characters of name, then one more each time,
		// skipping any run of redundant leading '*' first.
		rest := pattern
		for len(rest) > 0 && rest[0] == '*' {
			rest = rest[1:]
		}
		if rest == "" {
			return true
		}
		for i := 0; ; {
			if matchGlob(rest, name[i:]) {
				return true
			}
			if i >= len(name) {
				return false
			}
			_, size := utf8.DecodeRuneInString(name[i:])
			i += size
		}
	case '?':
		if len(name) == 0 {
			return false
		}
		_, size := utf8.DecodeRuneInString(name)
		return matchGlob(pattern[1:], name[size:])
	default:
		if len(name) == 0 || name[0] != pattern[0] {
			return false
		}
		return matchGlob(pattern[1:], name[1:])
	}
}
