// Package mcp exposes vaultsearch over the Model Context Protocol on
// stdio: semantic search, reindexing, and index statistics as MCP tools.
package mcp
