// Package mcp exposes the memory daemon to coding agents over the Model
// Context Protocol.
//
// The server runs on the stdio transport and registers five tools:
// memory_save, memory_query, compact_save, compact_list, and memory_status.
// Save paths are scrubbed for secrets before text leaves the process, and
// compact saves go through the retention store so the rotation limit holds
// regardless of which surface wrote the compact.
package mcp
