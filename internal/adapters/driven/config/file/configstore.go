// Package file provides a TOML file-backed configuration provider for
// target paths and path aliases.
package file

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/strata-cli/internal/core/domain"
	"github.com/custodia-labs/strata-cli/internal/core/ports/driven"
	"github.com/custodia-labs/strata-cli/internal/mask"
)

// Ensure ConfigProvider implements the interface.
var _ driven.ConfigProvider = (*ConfigProvider)(nil)

// targetPathTOML is the on-disk form of one target path entry.
type targetPathTOML struct {
	ID                string   `toml:"id"`
	DocumentType      string   `toml:"document_type"`
	Version           string   `toml:"version"`
	Path              string   `toml:"path"`
	Enabled           bool     `toml:"enabled"`
	ExpectedRefs      []string `toml:"expected_refs"`
	SignificantFields []string `toml:"significant_fields"`
}

// aliasTOML is the on-disk form of one path alias entry.
type aliasTOML struct {
	Version   string `toml:"version"`
	Canonical string `toml:"canonical"`
	Alternate string `toml:"alternate"`
	Priority  int    `toml:"priority"`
}

// maskRuleTOML is the on-disk form of one masking policy rule.
type maskRuleTOML struct {
	Suffix string `toml:"suffix"`
	Role   string `toml:"role"`
	Key    string `toml:"key"`
}

// configTOML is the full configuration document.
type configTOML struct {
	TargetPaths []targetPathTOML `toml:"target_path"`
	Aliases     []aliasTOML      `toml:"alias"`
	MaskRules   []maskRuleTOML   `toml:"mask_rule"`
}

// ConfigProvider is a file-based implementation of
// driven.ConfigProvider using TOML. The file is loaded once and held
// in memory; an extraction run never sees edits made after it started.
type ConfigProvider struct {
	mu       sync.RWMutex
	filePath string
	cfg      configTOML
}

// NewConfigProvider loads target path and alias configuration from a
// TOML file.
func NewConfigProvider(filePath string) (*ConfigProvider, error) {
	p := &ConfigProvider{filePath: filePath}
	if err := p.Load(); err != nil {
		return nil, err
	}
	return p, nil
}

// Load re-reads the configuration file. Runs already in flight keep
// the paths they resolved at setup.
func (p *ConfigProvider) Load() error {
	data, err := os.ReadFile(p.filePath)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}

	var cfg configTOML
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}

	p.mu.Lock()
	p.cfg = cfg
	p.mu.Unlock()
	return nil
}

// TargetPaths returns the configured target paths for a document
// version. Entries without a version apply to every version.
func (p *ConfigProvider) TargetPaths(_ context.Context, version string) ([]domain.TargetPath, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []domain.TargetPath
	for _, t := range p.cfg.TargetPaths {
		if t.Version != "" && t.Version != version {
			continue
		}
		out = append(out, domain.TargetPath{
			ID:                t.ID,
			DocumentType:      t.DocumentType,
			Version:           t.Version,
			Path:              t.Path,
			Enabled:           t.Enabled,
			ExpectedRefs:      t.ExpectedRefs,
			SignificantFields: t.SignificantFields,
		})
	}
	return out, nil
}

// Aliases returns the alias table for a document version. An unknown
// version yields an empty table; the resolver then falls back to
// canonical paths.
func (p *ConfigProvider) Aliases(_ context.Context, version string) ([]domain.PathAlias, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []domain.PathAlias
	for _, a := range p.cfg.Aliases {
		if a.Version != "" && a.Version != version {
			continue
		}
		out = append(out, domain.PathAlias{
			Version:   version,
			Canonical: a.Canonical,
			Alternate: a.Alternate,
			Priority:  a.Priority,
		})
	}
	return out, nil
}

// MaskRules returns the declarative masking policy entries.
func (p *ConfigProvider) MaskRules() []mask.Rule {
	p.mu.RLock()
	defer p.mu.RUnlock()

	rules := make([]mask.Rule, 0, len(p.cfg.MaskRules))
	for _, r := range p.cfg.MaskRules {
		rules = append(rules, mask.Rule{
			Suffix: r.Suffix,
			Role:   mask.Role(r.Role),
			Key:    r.Key,
		})
	}
	return rules
}
