package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/semdex/semdex/config"
	"github.com/semdex/semdex/indexer"
)

var (
	initProvider       string
	initModel          string
	initBackend        string
	initNonInteractive bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize semdex in the current directory",
	Long: `Initialize semdex by creating a .semdex directory with configuration.

This command will:
- Create .semdex/config.yaml with default settings
- Prompt for embedding provider (Ollama or OpenAI)
- Prompt for storage backend (Qdrant or pgvector)
- Add .semdex/ to .gitignore if present`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVarP(&initProvider, "provider", "p", "", "Embedding provider (ollama or openai)")
	initCmd.Flags().StringVarP(&initModel, "model", "m", "", "Embedding model")
	initCmd.Flags().StringVarP(&initBackend, "backend", "b", "", "Storage backend (qdrant, pgvector, or memory)")
	initCmd.Flags().BoolVar(&initNonInteractive, "yes", false, "Use defaults without prompting")
}

func runInit(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	if config.Exists(cwd) {
		fmt.Println("semdex is already initialized in this directory.")
		fmt.Printf("Configuration: %s\n", config.GetConfigPath(cwd))
		return nil
	}

	cfg := config.DefaultConfig()

	if initProvider != "" {
		cfg.Embedder.Provider = initProvider
	}
	if initModel != "" {
		cfg.Embedder.Model = initModel
	}
	if initBackend != "" {
		cfg.Store.Backend = initBackend
	}

	if !initNonInteractive {
		reader := bufio.NewReader(os.Stdin)

		if initProvider == "" {
			fmt.Println("\nSelect embedding provider:")
			fmt.Println("  1) ollama (local, privacy-first, requires Ollama running)")
			fmt.Println("  2) openai (cloud, requires API key)")
			fmt.Print("Choice [1]: ")

			input, _ := reader.ReadString('\n')
			switch strings.TrimSpace(input) {
			case "2", "openai":
				cfg.Embedder.Provider = "openai"
				cfg.Embedder.Model = "text-embedding-3-small"
			}
		}

		if initBackend == "" {
			fmt.Println("\nSelect storage backend:")
			fmt.Println("  1) qdrant (vector database, local or cloud)")
			fmt.Println("  2) pgvector (PostgreSQL with the vector extension)")
			fmt.Print("Choice [1]: ")

			input, _ := reader.ReadString('\n')
			switch strings.TrimSpace(input) {
			case "2", "pgvector":
				cfg.Store.Backend = "pgvector"
				fmt.Print("PostgreSQL DSN [postgres://localhost:5432/semdex]: ")
				dsn, _ := reader.ReadString('\n')
				dsn = strings.TrimSpace(dsn)
				if dsn == "" {
					dsn = "postgres://localhost:5432/semdex"
				}
				cfg.Store.Pgvector.DSN = dsn
			}
		}
	}

	switch cfg.Embedder.Provider {
	case "openai":
		if cfg.Embedder.Model == "" {
			cfg.Embedder.Model = "text-embedding-3-small"
		}
	case "ollama", "":
	default:
		return fmt.Errorf("unknown embedding provider: %s", cfg.Embedder.Provider)
	}

	if err := cfg.Save(cwd); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	if err := indexer.AddToGitignore(cwd, config.ConfigDir+"/"); err != nil {
		fmt.Printf("Warning: could not update .gitignore: %v\n", err)
	}

	fmt.Printf("\nInitialized semdex in %s\n", config.GetConfigDir(cwd))
	fmt.Println("\nNext steps:")
	fmt.Println("  semdex index     Build the index")
	fmt.Println("  semdex search    Search with natural language")
	fmt.Println("  semdex watch     Keep the index in sync with file changes")
	return nil
}
