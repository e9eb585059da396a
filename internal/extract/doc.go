// Package extract implements the streaming extraction engine: alias
// resolution for schema drift, the path-trie matcher over forward-only
// XML structural events, and the bounded subtree extractor that
// materializes matched subtrees in canonical form without ever loading
// the full document tree.
package extract
