package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/strata-cli/internal/core/domain"
	"github.com/custodia-labs/strata-cli/internal/core/ports/driving"
	"github.com/custodia-labs/strata-cli/internal/mask"
)

var (
	extractVersion    string
	extractAirline    string
	extractDocumentID string
	extractBudget     int
	extractParallel   int
	extractBestEffort bool
	extractJSON       bool
)

var extractCmd = &cobra.Command{
	Use:   "extract [file]",
	Short: "Extract and score structural patterns from an XML document",
	Long: `Streams one XML document through the extraction pipeline: path
matching, bounded subtree extraction, masking, signing, and scoring
against the pattern library.`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringVar(&extractVersion, "doc-version", "", "document version (required)")
	extractCmd.Flags().StringVar(&extractAirline, "airline", "", "observed airline code")
	extractCmd.Flags().StringVar(&extractDocumentID, "document-id", "", "source document id (default: file name)")
	extractCmd.Flags().IntVar(&extractBudget, "budget", 0, "subtree byte budget (default 256 KiB)")
	extractCmd.Flags().IntVar(&extractParallel, "parallel", 0, "worker parallelism (default 2)")
	extractCmd.Flags().BoolVar(&extractBestEffort, "best-effort-mask", false, "mask with safe defaults instead of rejecting on classifier failure")
	extractCmd.Flags().BoolVar(&extractJSON, "json", false, "output the run report as JSON")
	if err := extractCmd.MarkFlagRequired("doc-version"); err != nil {
		panic(err)
	}
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	path := args[0]
	if extractionService == nil {
		return errors.New("extraction service not configured")
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening document: %w", err)
	}
	defer f.Close()

	documentID := extractDocumentID
	if documentID == "" {
		documentID = filepath.Base(path)
	}

	report, err := extractionService.Run(context.Background(), driving.RunRequest{
		DocumentID:        documentID,
		DocumentVersion:   extractVersion,
		Airline:           extractAirline,
		Reader:            f,
		Classifier:        mask.RuleClassifier(configProvider.MaskRules()),
		BestEffortMasking: extractBestEffort,
		ByteBudget:        extractBudget,
		Parallelism:       extractParallel,
	})
	if err != nil {
		// Partial results scored before a stream failure are still
		// reported before the run fails.
		if report != nil && report.Instances > 0 {
			if extractJSON {
				_ = outputReportJSON(cmd, report)
			} else {
				_ = outputReportTable(cmd, report)
			}
		}
		return fmt.Errorf("extraction failed: %w", err)
	}

	if extractJSON {
		return outputReportJSON(cmd, report)
	}
	return outputReportTable(cmd, report)
}

func outputReportJSON(cmd *cobra.Command, report *driving.RunReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputReportTable(cmd *cobra.Command, report *driving.RunReport) error {
	cmd.Printf("Run %s: %d instance(s) in %s\n", report.RunID, report.Instances, report.Duration.Round(0))
	if report.Cancelled {
		cmd.Println("Run was cancelled; results are partial.")
	}
	for _, d := range []domain.Decision{domain.DecisionExact, domain.DecisionFuzzy, domain.DecisionNew, domain.DecisionRejected} {
		if n := report.Decisions[d]; n > 0 {
			cmd.Printf("  %-9s %d\n", d, n)
		}
	}
	for _, r := range report.Results {
		pattern := r.PatternID
		if pattern == "" {
			pattern = "-"
		}
		cmd.Printf("#%-4d %-9s conf=%.2f pattern=%s\n", r.Seq, r.Decision, r.Confidence, pattern)
	}
	return nil
}
