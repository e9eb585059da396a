// Package services implements the use-case layer: the extraction run
// pipeline, signature generation and scoring against the pattern
// library, conflict detection and merging, and best-effort pattern
// description. Services depend only on domain types and ports; all
// infrastructure comes in through constructors.
package services
