// Package domain contains the core business entities for structural
// extraction and pattern matching: target path configuration, extracted
// node instances, pattern signatures, and the pattern library entries
// they are matched against. Entities carry no behaviour beyond small
// invariant-preserving helpers; orchestration lives in core/services.
package domain
