// Package cli provides the cobra command surface for Strata.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	configfile "github.com/custodia-labs/strata-cli/internal/adapters/driven/config/file"
	"github.com/custodia-labs/strata-cli/internal/adapters/driven/describe/anthropic"
	"github.com/custodia-labs/strata-cli/internal/adapters/driven/describe/ollama"
	"github.com/custodia-labs/strata-cli/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/strata-cli/internal/core/ports/driven"
	"github.com/custodia-labs/strata-cli/internal/core/ports/driving"
	"github.com/custodia-labs/strata-cli/internal/core/services"
	"github.com/custodia-labs/strata-cli/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// Services wired by initServices and consumed by the commands.
var (
	configProvider    *configfile.ConfigProvider
	patternStore      driven.PatternStore
	extractionService driving.ExtractionService
	patternService    driving.PatternService
	conflictService   driving.ConflictService

	storeCloser func() error
)

// Persistent flags.
var (
	flagVerbose   bool
	flagConfig    string
	flagDataDir   string
	flagDescriber string
)

var rootCmd = &cobra.Command{
	Use:   "strata",
	Short: "Structural pattern extraction for airline distribution XML",
	Long: `Strata streams large NDC/airline distribution XML documents, extracts
configured substructures, and maintains a library of reusable structural
patterns matched with a confidence score.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logger.SetVerbose(flagVerbose)
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}
		// Already wired (one process runs one command, or a test
		// injected its own services).
		if extractionService != nil {
			return nil
		}
		return initServices()
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		if storeCloser != nil {
			storeCloser() //nolint:errcheck // best-effort close on exit
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to strata.toml (default ~/.strata/strata.toml)")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "pattern library directory (default ~/.strata/data)")
	rootCmd.PersistentFlags().StringVar(&flagDescriber, "describer", "", "pattern describer: anthropic, ollama, or empty for none")
}

// initServices wires the stores and services for one invocation.
func initServices() error {
	configPath := flagConfig
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("getting home directory: %w", err)
		}
		configPath = home + "/.strata/strata.toml"
	}

	var err error
	configProvider, err = configfile.NewConfigProvider(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	store, err := sqlite.NewStore(flagDataDir)
	if err != nil {
		return fmt.Errorf("opening pattern library: %w", err)
	}
	patternStore = store
	storeCloser = store.Close
	logger.Debug("pattern library at %s", store.Path())

	describer, err := buildDescriber()
	if err != nil {
		return err
	}

	description := services.NewDescriptionService(describer)
	ps := services.NewPatternService(patternStore, description)
	patternService = ps
	extractionService = services.NewExtractionService(configProvider, ps)
	conflictService = services.NewConflictService(patternStore)
	return nil
}

// buildDescriber selects the optional description backend. Absence is
// not an error: descriptions are best-effort.
func buildDescriber() (driven.Describer, error) {
	switch flagDescriber {
	case "":
		return nil, nil
	case "anthropic":
		return anthropic.New(anthropic.Config{APIKey: os.Getenv("ANTHROPIC_API_KEY")})
	case "ollama":
		return ollama.New(ollama.Config{BaseURL: os.Getenv("OLLAMA_HOST")}), nil
	default:
		return nil, fmt.Errorf("unknown describer %q", flagDescriber)
	}
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
