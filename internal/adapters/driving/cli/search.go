package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/moa-labs/docmoa/internal/core/domain"
)

var (
	searchTopK    int
	searchFilters []string
	searchJSON    bool
	searchRewrite bool
	searchNoRank  bool
	searchNoCache bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the document corpus",
	Long: `Performs hybrid search across all indexed documents.
Keyword (BM25) and semantic (vector) results are fused with
Reciprocal Rank Fusion; either path failing degrades the search to
the surviving path instead of failing it.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 10, "maximum number of results")
	searchCmd.Flags().StringArrayVarP(&searchFilters, "filter", "f", nil, "metadata filter as key=value (repeatable)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	searchCmd.Flags().BoolVar(&searchRewrite, "rewrite", false, "rewrite the query with the LLM before searching")
	searchCmd.Flags().BoolVar(&searchNoRank, "no-rerank", false, "skip the keyword-overlap reranking pass")
	searchCmd.Flags().BoolVar(&searchNoCache, "no-cache", false, "bypass the result cache")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]

	if searchService == nil {
		return errors.New("search service not configured")
	}

	filters, err := parseFilters(searchFilters)
	if err != nil {
		return err
	}

	opts := domain.SearchOptions{
		TopK:     searchTopK,
		Filters:  filters,
		Rewrite:  searchRewrite,
		NoRerank: searchNoRank,
		NoCache:  searchNoCache,
	}

	resp, err := searchService.Search(cmd.Context(), query, opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, resp)
	}

	return outputSearchTable(cmd, resp)
}

// parseFilters converts key=value pairs into a filter map.
func parseFilters(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	filters := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid filter %q: expected key=value", pair)
		}
		filters[key] = value
	}
	return filters, nil
}

func outputSearchJSON(cmd *cobra.Command, resp *domain.SearchResponse) error {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, resp *domain.SearchResponse) error {
	if resp.Degraded {
		failed := make([]string, len(resp.FailedPaths))
		for i, p := range resp.FailedPaths {
			failed[i] = string(p)
		}
		cmd.Printf("Warning: %s search unavailable, results are partial.\n\n",
			strings.Join(failed, " and "))
	}

	if len(resp.Results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range resp.Results {
		r := &resp.Results[i]

		title := ""
		if t, ok := r.Metadata["title"].(string); ok {
			title = t
		}
		if title == "" {
			title = r.DocumentID
		}

		cmd.Printf("  [%d] %s (%.4f, %s)\n", r.Rank, title, r.FusionScore, strings.Join(r.SourceNames(), "+"))
		if r.Snippet != "" {
			cmd.Printf("      %s\n", r.Snippet)
		}
		cmd.Println()
	}

	if resp.Insufficient {
		cmd.Println("Fewer results than expected; try a broader query.")
	}
	if resp.CacheHit {
		cmd.Println("(cached)")
	}

	return nil
}
