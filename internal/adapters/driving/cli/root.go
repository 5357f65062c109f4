// Package cli provides the docmoa command-line interface.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	configfile "github.com/moa-labs/docmoa/internal/adapters/driven/config/file"
	ollamaembed "github.com/moa-labs/docmoa/internal/adapters/driven/embedding/ollama"
	vectoridx "github.com/moa-labs/docmoa/internal/adapters/driven/index/vector"
	ollamallm "github.com/moa-labs/docmoa/internal/adapters/driven/llm/ollama"
	"github.com/moa-labs/docmoa/internal/adapters/driven/storage/sqlite"
	"github.com/moa-labs/docmoa/internal/chunker"
	"github.com/moa-labs/docmoa/internal/core/ports/driven"
	"github.com/moa-labs/docmoa/internal/core/ports/driving"
	"github.com/moa-labs/docmoa/internal/core/services"
	"github.com/moa-labs/docmoa/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// Global flags.
var (
	verbose   bool
	configDir string
	dataDir   string
)

// Global services, wired by initServices before command execution.
var (
	configStore   *configfile.ConfigStore
	store         *sqlite.Store
	docStore      driven.DocumentStore
	searchService driving.SearchService
	ingestService driving.IngestService
)

var rootCmd = &cobra.Command{
	Use:   "docmoa",
	Short: "Hybrid search over your local document corpus",
	Long: `docmoa indexes documents locally and searches them with a hybrid of
keyword (BM25) and semantic (vector) retrieval, fused with
Reciprocal Rank Fusion.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logger.SetVerbose(verbose)

		// Commands that don't touch the corpus skip service wiring.
		switch cmd.Name() {
		case "version", "help", "completion":
			return nil
		}
		// Already wired, either by a previous run or by injection.
		if searchService != nil {
			return nil
		}
		return initServices(cmd.Context())
	},
	PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
		return shutdown()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "config directory (default ~/.docmoa)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (default ~/.docmoa/data)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// initServices wires the adapters into the core services.
// The vector index is in-memory and rebuilt from stored embeddings.
func initServices(ctx context.Context) error {
	var err error

	configStore, err = configfile.NewConfigStore(configDir)
	if err != nil {
		return fmt.Errorf("opening config store: %w", err)
	}

	dir := dataDir
	if dir == "" {
		dir = configStore.GetString("storage.data_dir")
	}
	store, err = sqlite.NewStore(dir)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	docStore = store.DocumentStore()
	lexical := store.LexicalIndex()

	embedder := ollamaembed.NewEmbeddingService(ollamaembed.Config{
		BaseURL:    configStore.GetString("embedding.base_url"),
		Model:      configStore.GetString("embedding.model"),
		Dimensions: configStore.GetInt("embedding.dimensions"),
	})

	searchCfg := configStore.SearchConfig()

	vector, err := vectoridx.New(embedder.Dimensions(),
		vectoridx.WithOverfetchFactor(searchCfg.VectorOverfetch))
	if err != nil {
		return fmt.Errorf("creating vector index: %w", err)
	}
	if err := rebuildVectorIndex(ctx, vector); err != nil {
		return fmt.Errorf("rebuilding vector index: %w", err)
	}

	llm := ollamallm.NewLLMService(ollamallm.Config{
		BaseURL: configStore.GetString("llm.base_url"),
		Model:   configStore.GetString("llm.model"),
	})

	svc := services.NewSearchService(docStore, lexical, vector, embedder, llm, searchCfg)
	svc.SetReranker(services.NewOverlapReranker(0))
	svc.SetObserver(logger.Timing)
	searchService = svc

	ck := chunker.New(
		chunker.WithChunkSize(configStore.GetInt("chunker.size")),
		chunker.WithOverlap(configStore.GetInt("chunker.overlap")),
	)
	ingestService = services.NewIngestService(docStore, lexical, vector, embedder, ck, svc)

	return nil
}

// rebuildVectorIndex loads every stored chunk embedding into the
// in-memory index at startup.
func rebuildVectorIndex(ctx context.Context, vector driven.VectorIndex) error {
	chunks, err := docStore.ListChunks(ctx)
	if err != nil {
		return err
	}

	indexed := 0
	for i := range chunks {
		if len(chunks[i].Embedding) == 0 {
			continue
		}
		if err := vector.Add(ctx, chunks[i].ID, chunks[i].Embedding, chunks[i].Metadata); err != nil {
			logger.Warn("skipping chunk %s: %v", chunks[i].ID, err)
			continue
		}
		indexed++
	}

	logger.Debug("vector index rebuilt: %d of %d chunks", indexed, len(chunks))
	return nil
}

// shutdown closes the backing store.
func shutdown() error {
	if store != nil {
		return store.Close()
	}
	return nil
}
