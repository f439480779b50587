package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/semdex/semdex/indexer"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build or rebuild the semantic index",
	Long: `Scan the project, chunk every supported source file into structural
blocks, embed them, and store the vectors in the configured backend.

Re-running index replaces the vectors for files whose content changed;
block IDs are derived from file path, line range and content, so unchanged
blocks upsert onto themselves.`,
	RunE: runIndex,
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	projectRoot, cfg, err := openProject()
	if err != nil {
		return err
	}

	manager, closeAll, err := buildManager(ctx, projectRoot, cfg)
	if err != nil {
		return err
	}
	defer closeAll()

	fmt.Printf("Indexing %s...\n", projectRoot)

	var lastStage indexer.Stage
	var fileErrors int
	err = manager.IndexDirectory(ctx, func(p *indexer.Progress) {
		total, processed, current, stage, errCount := p.Snapshot()
		fileErrors = errCount
		if stage != lastStage {
			lastStage = stage
			fmt.Printf("[%s]\n", stage)
		}
		if stage == indexer.StageParsing && current != "" {
			fmt.Printf("  %d/%d %s\n", processed, total, current)
		}
	})
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	if fileErrors > 0 {
		fmt.Printf("Done with %d file errors (see log output above).\n", fileErrors)
	} else {
		fmt.Println("Done.")
	}
	return nil
}
