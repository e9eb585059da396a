package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/strata-cli/internal/core/domain"
)

var (
	patternsType string
	patternsJSON bool
)

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Inspect the pattern library",
}

var patternsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List library patterns",
	RunE:  runPatternsList,
}

var patternsShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show one pattern, following supersession",
	Args:  cobra.ExactArgs(1),
	RunE:  runPatternsShow,
}

func init() {
	patternsListCmd.Flags().StringVar(&patternsType, "type", "", "filter by document type")
	patternsListCmd.Flags().BoolVar(&patternsJSON, "json", false, "output as JSON")
	patternsShowCmd.Flags().BoolVar(&patternsJSON, "json", false, "output as JSON")
	patternsCmd.AddCommand(patternsListCmd)
	patternsCmd.AddCommand(patternsShowCmd)
	rootCmd.AddCommand(patternsCmd)
}

func runPatternsList(cmd *cobra.Command, _ []string) error {
	if patternService == nil {
		return errors.New("pattern service not configured")
	}

	patterns, err := patternService.List(context.Background(), patternsType)
	if err != nil {
		return fmt.Errorf("listing patterns: %w", err)
	}

	if patternsJSON {
		data, err := json.MarshalIndent(patterns, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal patterns: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(patterns) == 0 {
		cmd.Println("No patterns recorded.")
		return nil
	}
	for _, p := range patterns {
		status := ""
		if p.Superseded() {
			status = fmt.Sprintf(" (superseded by %s)", p.SupersededBy)
		}
		cmd.Printf("%s  %-14s examples=%d airlines=%v versions=%v%s\n",
			p.ID, p.DocumentType, p.ExampleCount, p.Airlines, p.Versions, status)
	}
	return nil
}

func runPatternsShow(cmd *cobra.Command, args []string) error {
	if patternService == nil {
		return errors.New("pattern service not configured")
	}

	p, err := patternService.Resolve(context.Background(), args[0])
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("pattern %s not found", args[0])
		}
		return fmt.Errorf("resolving pattern: %w", err)
	}

	if patternsJSON {
		data, err := json.MarshalIndent(p, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal pattern: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Printf("Pattern %s\n", p.ID)
	cmd.Printf("  Document type: %s\n", p.DocumentType)
	cmd.Printf("  Hash:          %s\n", p.Signature.Hash)
	cmd.Printf("  Examples:      %d\n", p.ExampleCount)
	cmd.Printf("  Airlines:      %v\n", p.Airlines)
	cmd.Printf("  Versions:      %v\n", p.Versions)
	if p.Description != "" {
		cmd.Printf("  Description:   %s\n", p.Description)
	}
	return nil
}
