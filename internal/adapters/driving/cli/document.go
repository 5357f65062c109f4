package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Manage indexed documents",
	Long:  `List, view, or delete indexed documents.`,
}

var documentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all documents",
	Args:  cobra.NoArgs,
	RunE:  runDocumentList,
}

var documentContentCmd = &cobra.Command{
	Use:   "content [doc-id]",
	Short: "Print document content",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentContent,
}

var documentDeleteCmd = &cobra.Command{
	Use:   "delete [doc-id]",
	Short: "Remove a document from the corpus",
	Long:  `Deletes the document and purges its chunks from both search indices.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentDelete,
}

func init() {
	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentContentCmd)
	documentCmd.AddCommand(documentDeleteCmd)
	rootCmd.AddCommand(documentCmd)
}

func runDocumentList(cmd *cobra.Command, _ []string) error {
	if docStore == nil {
		return errors.New("document store not configured")
	}

	docs, err := docStore.ListDocuments(cmd.Context())
	if err != nil {
		return fmt.Errorf("listing documents: %w", err)
	}

	if len(docs) == 0 {
		cmd.Println("No documents indexed.")
		return nil
	}

	for i := range docs {
		title := docs[i].Title
		if title == "" {
			title = "(untitled)"
		}
		cmd.Printf("  %s  %s\n", docs[i].ID, title)
		if docs[i].URI != "" {
			cmd.Printf("      %s\n", docs[i].URI)
		}
	}
	cmd.Printf("\n%d document(s)\n", len(docs))
	return nil
}

func runDocumentContent(cmd *cobra.Command, args []string) error {
	if docStore == nil {
		return errors.New("document store not configured")
	}

	doc, err := docStore.GetDocument(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("getting document: %w", err)
	}

	cmd.Println(doc.Content)
	return nil
}

func runDocumentDelete(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	if err := ingestService.Delete(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}

	cmd.Printf("Deleted %s\n", args[0])
	return nil
}
