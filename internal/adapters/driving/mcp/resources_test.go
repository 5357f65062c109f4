package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moa-labs/docmoa/internal/adapters/driven/storage/memory"
	"github.com/moa-labs/docmoa/internal/core/domain"
)

// Helper to create a ReadResourceRequest with the given URI.
func makeReadResourceRequest(uri string) *mcp.ReadResourceRequest {
	return &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func TestExtractDocumentID(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		expected string
	}{
		{
			name:     "valid document URI",
			uri:      "docmoa://documents/doc-456",
			expected: "doc-456",
		},
		{
			name:     "invalid prefix",
			uri:      "file://documents/doc-456",
			expected: "",
		},
		{
			name:     "missing document ID",
			uri:      "docmoa://documents/",
			expected: "",
		},
		{
			name:     "nested path",
			uri:      "docmoa://documents/doc-456/extra",
			expected: "",
		},
		{
			name:     "empty URI",
			uri:      "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractDocumentID(tt.uri))
		})
	}
}

func TestServer_handleDocumentsResource(t *testing.T) {
	ctx := context.Background()

	t.Run("lists documents", func(t *testing.T) {
		store := memory.NewDocumentStore()
		require.NoError(t, store.SaveDocument(ctx, &domain.Document{
			ID:    "doc-1",
			Title: "휴가 정책",
			URI:   "wiki/vacation",
		}))
		require.NoError(t, store.SaveDocument(ctx, &domain.Document{
			ID:    "doc-2",
			Title: "보안 교육",
			URI:   "wiki/security",
		}))

		server, err := NewServer(&Ports{
			Search:    &mockSearchService{},
			Documents: store,
		})
		require.NoError(t, err)

		result, err := server.handleDocumentsResource(ctx, makeReadResourceRequest("docmoa://documents"))

		require.NoError(t, err)
		require.Len(t, result.Contents, 1)
		assert.Equal(t, "application/json", result.Contents[0].MIMEType)

		var infos []struct {
			ID    string `json:"id"`
			Title string `json:"title"`
			URI   string `json:"uri"`
		}
		require.NoError(t, json.Unmarshal([]byte(result.Contents[0].Text), &infos))
		require.Len(t, infos, 2)
		assert.Equal(t, "doc-1", infos[0].ID)
		assert.Equal(t, "휴가 정책", infos[0].Title)
	})

	t.Run("no document store returns empty list", func(t *testing.T) {
		server, err := NewServer(&Ports{Search: &mockSearchService{}})
		require.NoError(t, err)

		result, err := server.handleDocumentsResource(ctx, makeReadResourceRequest("docmoa://documents"))

		require.NoError(t, err)
		require.Len(t, result.Contents, 1)
		assert.Equal(t, "[]", result.Contents[0].Text)
	})
}

func TestServer_handleDocumentContentResource(t *testing.T) {
	ctx := context.Background()

	t.Run("returns document content", func(t *testing.T) {
		store := memory.NewDocumentStore()
		require.NoError(t, store.SaveDocument(ctx, &domain.Document{
			ID:      "doc-1",
			Content: "연차는 입사일 기준으로 부여됩니다.",
		}))

		server, err := NewServer(&Ports{
			Search:    &mockSearchService{},
			Documents: store,
		})
		require.NoError(t, err)

		result, err := server.handleDocumentContentResource(ctx,
			makeReadResourceRequest("docmoa://documents/doc-1"))

		require.NoError(t, err)
		require.Len(t, result.Contents, 1)
		assert.Equal(t, "text/plain", result.Contents[0].MIMEType)
		assert.Equal(t, "연차는 입사일 기준으로 부여됩니다.", result.Contents[0].Text)
	})

	t.Run("unknown document returns not found", func(t *testing.T) {
		server, err := NewServer(&Ports{
			Search:    &mockSearchService{},
			Documents: memory.NewDocumentStore(),
		})
		require.NoError(t, err)

		_, err = server.handleDocumentContentResource(ctx,
			makeReadResourceRequest("docmoa://documents/missing"))

		require.Error(t, err)
	})

	t.Run("malformed URI returns not found", func(t *testing.T) {
		server, err := NewServer(&Ports{
			Search:    &mockSearchService{},
			Documents: memory.NewDocumentStore(),
		})
		require.NoError(t, err)

		_, err = server.handleDocumentContentResource(ctx,
			makeReadResourceRequest("docmoa://invalid/uri"))

		require.Error(t, err)
	})

	t.Run("no document store returns not found", func(t *testing.T) {
		server, err := NewServer(&Ports{Search: &mockSearchService{}})
		require.NoError(t, err)

		_, err = server.handleDocumentContentResource(ctx,
			makeReadResourceRequest("docmoa://documents/doc-1"))

		require.Error(t, err)
	})
}
