package normalize

import "golang.org/x/text/language"

// MatchLexicon picks the best lexicon language for a requested BCP 47
// tag. Lexicons declare the languages they carry; candidates may arrive
// tagged with anything. Unknown or empty tags fall back to the first
// supported language so a missing tag never bypasses detection.
func MatchLexicon(supported []language.Tag, requested string) language.Tag {
	if len(supported) == 0 {
		return language.Und
	}
	if requested == "" {
		return supported[0]
	}
	tag, err := language.Parse(requested)
	if err != nil {
		return supported[0]
	}
	matcher := language.NewMatcher(supported)
	matched, _, conf := matcher.Match(tag)
	if conf == language.No {
		return supported[0]
	}
	// The matcher can return an extended variant; canonicalize back to
	// the declared lexicon tag.
	base, _ := matched.Base()
	for _, s := range supported {
		if sb, _ := s.Base(); sb == base {
			return s
		}
	}
	return supported[0]
}
