package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/moa-labs/docmoa/internal/core/domain"
)

var (
	ingestTitle string
	ingestTags  []string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file...]",
	Short: "Add documents to the corpus",
	Long: `Reads one or more text files, chunks them, generates embeddings and
indexes each chunk for both keyword and semantic search.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestTitle, "title", "t", "", "document title (single-file ingest only, defaults to the filename)")
	ingestCmd.Flags().StringArrayVar(&ingestTags, "tag", nil, "metadata tag as key=value, attached to every chunk (repeatable)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}
	if ingestTitle != "" && len(args) > 1 {
		return errors.New("--title cannot be used with multiple files")
	}

	tags, err := parseFilters(ingestTags)
	if err != nil {
		return err
	}

	for _, path := range args {
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}

		title := ingestTitle
		if title == "" {
			title = filepath.Base(path)
		}

		now := time.Now()
		doc := &domain.Document{
			ID:        uuid.New().String(),
			Title:     title,
			URI:       path,
			Content:   string(content),
			Metadata:  tags,
			CreatedAt: now,
			UpdatedAt: now,
		}

		chunks, err := ingestService.Ingest(cmd.Context(), doc)
		if err != nil {
			return fmt.Errorf("ingesting %s: %w", path, err)
		}

		cmd.Printf("Ingested %s (%d chunks, id %s)\n", path, chunks, doc.ID)
	}

	return nil
}
