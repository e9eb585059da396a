package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var conflictsJSON bool

var conflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "Detect and merge near-duplicate patterns",
}

var conflictsDetectCmd = &cobra.Command{
	Use:   "detect [document-type]",
	Short: "Propose merges for same-shape patterns",
	Args:  cobra.ExactArgs(1),
	RunE:  runConflictsDetect,
}

var conflictsMergeCmd = &cobra.Command{
	Use:   "merge [pattern-a] [pattern-b]",
	Short: "Merge two patterns, superseding the non-survivor",
	Args:  cobra.ExactArgs(2),
	RunE:  runConflictsMerge,
}

func init() {
	conflictsDetectCmd.Flags().BoolVar(&conflictsJSON, "json", false, "output as JSON")
	conflictsCmd.AddCommand(conflictsDetectCmd)
	conflictsCmd.AddCommand(conflictsMergeCmd)
	rootCmd.AddCommand(conflictsCmd)
}

func runConflictsDetect(cmd *cobra.Command, args []string) error {
	if conflictService == nil {
		return errors.New("conflict service not configured")
	}

	proposals, err := conflictService.DetectConflicts(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("detecting conflicts: %w", err)
	}

	if conflictsJSON {
		data, err := json.MarshalIndent(proposals, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal proposals: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(proposals) == 0 {
		cmd.Println("No merge candidates found.")
		return nil
	}
	for _, p := range proposals {
		cmd.Printf("merge %s -> %s (shape %.12s…)\n", p.SupersededID, p.SurvivorID, p.ShapeHash)
	}
	return nil
}

func runConflictsMerge(cmd *cobra.Command, args []string) error {
	if conflictService == nil {
		return errors.New("conflict service not configured")
	}

	if err := conflictService.ApplyMerge(context.Background(), args[0], args[1]); err != nil {
		return fmt.Errorf("applying merge: %w", err)
	}
	cmd.Println("Merge applied.")
	return nil
}
