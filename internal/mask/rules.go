package mask

import "strings"

// Rule is one declarative masking policy entry: field paths ending in
// Suffix get the given role. Policy is data, not code, so external
// collaborators can ship it as configuration.
type Rule struct {
	// Suffix matches the end of a slash-separated field path, e.g.
	// "Pax/GivenName" or "@PaxRefID".
	Suffix string

	// Role to assign on match.
	Role Role

	// Key names the sensitive role for placeholder derivation.
	Key string
}

// RuleClassifier builds a classifier from ordered rules. The first
// matching rule wins; unmatched fields are plain.
func RuleClassifier(rules []Rule) Classifier {
	return func(fieldPath string) (Classification, error) {
		for _, r := range rules {
			if r.Suffix != "" && strings.HasSuffix(fieldPath, r.Suffix) {
				return Classification{Role: r.Role, Key: r.Key}, nil
			}
		}
		return Classification{Role: RolePlain}, nil
	}
}
