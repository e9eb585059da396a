package extract

import (
	"sort"

	"github.com/custodia-labs/strata-cli/internal/core/domain"
)

// AliasResolver maps a (version, canonical path) pair to an ordered
// list of literal path candidates. It is a pure lookup over versioned
// configuration loaded once per run; it never errors. An unknown
// version resolves to the canonical path alone.
type AliasResolver struct {
	// version -> canonical -> alternates in priority order
	byVersion map[string]map[string][]domain.PathAlias
}

// NewAliasResolver builds a resolver from the alias table.
func NewAliasResolver(aliases []domain.PathAlias) *AliasResolver {
	r := &AliasResolver{byVersion: make(map[string]map[string][]domain.PathAlias)}
	for _, a := range aliases {
		byCanonical := r.byVersion[a.Version]
		if byCanonical == nil {
			byCanonical = make(map[string][]domain.PathAlias)
			r.byVersion[a.Version] = byCanonical
		}
		byCanonical[a.Canonical] = append(byCanonical[a.Canonical], a)
	}
	for _, byCanonical := range r.byVersion {
		for canonical := range byCanonical {
			chain := byCanonical[canonical]
			sort.SliceStable(chain, func(i, j int) bool { return chain[i].Priority < chain[j].Priority })
		}
	}
	return r
}

// Resolve returns the literal path candidates for a canonical path
// under the given version, ending with the canonical path itself as the
// last resort. Duplicate alternates are dropped, first occurrence wins.
func (r *AliasResolver) Resolve(version, canonical string) []string {
	var out []string
	seen := make(map[string]bool)
	if byCanonical, ok := r.byVersion[version]; ok {
		for _, a := range byCanonical[canonical] {
			if a.Alternate == "" || seen[a.Alternate] {
				continue
			}
			seen[a.Alternate] = true
			out = append(out, a.Alternate)
		}
	}
	if !seen[canonical] {
		out = append(out, canonical)
	}
	return out
}

// KnownVersion reports whether any aliases exist for the version.
// Useful for diagnostics only; Resolve already falls back silently.
func (r *AliasResolver) KnownVersion(version string) bool {
	_, ok := r.byVersion[version]
	return ok
}
