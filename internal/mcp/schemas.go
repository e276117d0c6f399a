package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// searchNotesTool returns the tool definition for search_notes.
func searchNotesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_notes",
		Description: "Semantic search over the indexed note vault",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Natural-language search query",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
				"min_score": map[string]interface{}{
					"type":        "number",
					"description": "Minimum cosine similarity score (0-1)",
					"default":     0,
				},
			},
			Required: []string{"query"},
		},
	}
}

// reindexVaultTool returns the tool definition for reindex_vault.
func reindexVaultTool() mcp.Tool {
	return mcp.Tool{
		Name:        "reindex_vault",
		Description: "Re-run the vault indexing pipeline",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"force": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, re-embed every document ignoring fingerprints",
					"default":     false,
				},
			},
		},
	}
}

// vaultStatsTool returns the tool definition for vault_stats.
func vaultStatsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "vault_stats",
		Description: "Report index statistics: document count, model, last index time",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
