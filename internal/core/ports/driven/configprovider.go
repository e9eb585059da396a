package driven

import (
	"context"

	"github.com/custodia-labs/strata-cli/internal/core/domain"
)

// ConfigProvider supplies target path and alias configuration for an
// extraction run. Configuration is loaded once per run and immutable at
// match time; editing is the configuration collaborator's concern.
type ConfigProvider interface {
	// TargetPaths returns the configured target paths for a document
	// version. Disabled paths are included; the trie builder skips
	// them.
	TargetPaths(ctx context.Context, version string) ([]domain.TargetPath, error)

	// Aliases returns the path alias table for a document version. An
	// unknown version returns an empty table, not an error.
	Aliases(ctx context.Context, version string) ([]domain.PathAlias, error)
}
