package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/strata-cli/internal/core/ports/driving"
	"github.com/custodia-labs/strata-cli/internal/logger"
	"github.com/custodia-labs/strata-cli/internal/mask"
)

var (
	watchVersion string
	watchAirline string
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Continuously extract XML documents dropped into a directory",
	Long: `Watches a directory and runs the extraction pipeline over every XML
file created in it. Stops on interrupt.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchVersion, "doc-version", "", "document version (required)")
	watchCmd.Flags().StringVar(&watchAirline, "airline", "", "observed airline code")
	if err := watchCmd.MarkFlagRequired("doc-version"); err != nil {
		panic(err)
	}
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	dir := args[0]
	if extractionService == nil {
		return errors.New("extraction service not configured")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd.Printf("Watching %s for XML documents (Ctrl-C to stop)\n", dir)
	for {
		select {
		case <-ctx.Done():
			cmd.Println("Stopped.")
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error: %v", err)
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".xml") {
				continue
			}
			if err := extractOne(ctx, cmd, event.Name); err != nil {
				// One bad document never stops the watch.
				logger.Warn("extracting %s: %v", event.Name, err)
			}
		}
	}
}

func extractOne(ctx context.Context, cmd *cobra.Command, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening document: %w", err)
	}
	defer f.Close()

	report, err := extractionService.Run(ctx, driving.RunRequest{
		DocumentID:      filepath.Base(path),
		DocumentVersion: watchVersion,
		Airline:         watchAirline,
		Reader:          f,
		Classifier:      mask.RuleClassifier(configProvider.MaskRules()),
	})
	if err != nil {
		return err
	}
	cmd.Printf("%s: %d instance(s)", filepath.Base(path), report.Instances)
	for decision, n := range report.Decisions {
		cmd.Printf(" %s=%d", decision, n)
	}
	cmd.Println()
	return nil
}
