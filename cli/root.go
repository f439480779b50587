package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "semdex",
	Short: "Semantic code search for your codebase",
	Long: `semdex builds a semantic index of your codebase and searches it with
natural language queries.

Code is split into structural blocks (functions, classes, interfaces),
embedded with a local or cloud embedding provider, and stored in a vector
database. Searches embed the query and return the closest blocks.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(mcpServeCmd)
}
