package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/semdex/semdex/indexer"
	"github.com/semdex/semdex/store"
)

var (
	searchLimit    int
	searchMinScore float32
	searchJSON     bool
	searchCompact  bool
)

// SearchResultJSON is a lightweight struct for JSON output.
type SearchResultJSON struct {
	FilePath  string  `json:"file_path"`
	StartLine int     `json:"start_line"`
	EndLine   int     `json:"end_line"`
	Score     float32 `json:"score"`
	Type      string  `json:"type,omitempty"`
	Name      string  `json:"name,omitempty"`
	Content   string  `json:"content,omitempty"`
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the codebase with natural language",
	Long: `Search your codebase using natural language queries.

The search will:
- Vectorize your query using the configured embedding provider
- Rank indexed code blocks by cosine similarity
- Return the most relevant results with file path, line numbers, and score`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "Maximum number of results (default from config)")
	searchCmd.Flags().Float32Var(&searchMinScore, "min-score", -1, "Minimum similarity score (default from config)")
	searchCmd.Flags().BoolVarP(&searchJSON, "json", "j", false, "Output results in JSON format (for AI agents)")
	searchCmd.Flags().BoolVarP(&searchCompact, "compact", "c", false, "Omit block content from JSON output (requires --json)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]
	ctx := context.Background()

	if searchCompact && !searchJSON {
		return fmt.Errorf("--compact flag requires --json flag")
	}

	projectRoot, cfg, err := openProject()
	if err != nil {
		return err
	}

	limit := searchLimit
	if limit <= 0 {
		limit = cfg.Search.Limit
	}
	minScore := searchMinScore
	if minScore < 0 {
		minScore = cfg.Search.MinScore
	}

	manager, closeAll, err := buildManager(ctx, projectRoot, cfg)
	if err != nil {
		return err
	}
	defer closeAll()

	results, err := manager.Search(ctx, query, limit, minScore)
	if err != nil {
		if errors.Is(err, indexer.ErrNotIndexed) {
			return fmt.Errorf("no index found; run: semdex index")
		}
		if searchJSON {
			return outputSearchErrorJSON(err)
		}
		return err
	}

	if searchJSON {
		return outputSearchJSON(results, !searchCompact)
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Printf("Found %d results for: %q\n\n", len(results), query)

	for i, result := range results {
		fmt.Printf("─── Result %d (score: %.4f) ───\n", i+1, result.Score)
		header := result.Payload.FilePath
		if result.Payload.Name != "" {
			header = fmt.Sprintf("%s (%s %s)", header, result.Payload.Type, result.Payload.Name)
		}
		fmt.Printf("File: %s:%d-%d\n", header, result.Payload.StartLine, result.Payload.EndLine)
		fmt.Println()

		lines := strings.Split(result.Payload.Content, "\n")
		lineNum := result.Payload.StartLine
		for j := 0; j < len(lines) && j < 15; j++ {
			fmt.Printf("%4d │ %s\n", lineNum, lines[j])
			lineNum++
		}
		if len(lines) > 15 {
			fmt.Printf("     │ ... (%d more lines)\n", len(lines)-15)
		}
		fmt.Println()
	}

	return nil
}

func outputSearchJSON(results []store.SearchResult, withContent bool) error {
	jsonResults := make([]SearchResultJSON, len(results))
	for i, r := range results {
		jsonResults[i] = SearchResultJSON{
			FilePath:  r.Payload.FilePath,
			StartLine: r.Payload.StartLine,
			EndLine:   r.Payload.EndLine,
			Score:     r.Score,
			Type:      r.Payload.Type,
			Name:      r.Payload.Name,
		}
		if withContent {
			jsonResults[i].Content = r.Payload.Content
		}
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(jsonResults)
}

func outputSearchErrorJSON(err error) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(map[string]string{"error": err.Error()})
	return nil
}
