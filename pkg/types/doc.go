// Package types contains the shared data types used across vaultsearch
// packages: vault documents, search results, and indexing summaries.
//
// Keeping these in a leaf package avoids import cycles between the
// document source, the indexer, and the MCP layer.
package types
