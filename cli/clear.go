package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var clearYes bool

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the semantic index",
	Long: `Delete the backing collection from the configured vector store.

The project configuration in .semdex/ is kept; run 'semdex index' to
rebuild.`,
	RunE: runClear,
}

func init() {
	clearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "Skip the confirmation prompt")
}

func runClear(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	projectRoot, cfg, err := openProject()
	if err != nil {
		return err
	}

	if !clearYes {
		reader := bufio.NewReader(os.Stdin)
		fmt.Printf("Delete the index for %s? [y/N]: ", projectRoot)
		input, _ := reader.ReadString('\n')
		input = strings.TrimSpace(strings.ToLower(input))
		if input != "y" && input != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	manager, closeAll, err := buildManager(ctx, projectRoot, cfg)
	if err != nil {
		return err
	}
	defer closeAll()

	if err := manager.ClearIndex(ctx); err != nil {
		return err
	}

	fmt.Println("Index deleted.")
	return nil
}
