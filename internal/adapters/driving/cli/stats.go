package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show search service counters",
	Long:  `Prints runtime counters for the search service: queries served, cache activity and path failures.`,
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
	if searchService == nil {
		return errors.New("search service not configured")
	}

	stats := searchService.Stats()

	cmd.Printf("Queries:           %d\n", stats.Queries)
	cmd.Printf("Degraded queries:  %d\n", stats.DegradedQueries)
	cmd.Printf("Cache hits:        %d\n", stats.CacheHits)
	cmd.Printf("Cache misses:      %d\n", stats.CacheMisses)
	cmd.Printf("Cache entries:     %d\n", stats.CacheEntries)
	cmd.Printf("Lexical failures:  %d\n", stats.LexicalFailures)
	cmd.Printf("Vector failures:   %d\n", stats.VectorFailures)
	return nil
}
