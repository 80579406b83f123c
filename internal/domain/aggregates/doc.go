// Package aggregates defines the shared vocabulary of aggregate write
// boundaries: contract descriptors and the typed error codes every write
// method returns.
//
// Contracts avoid persistence and transport details. Concrete aggregates live
// next to their domain types and are implemented under internal/data/aggregates.
package aggregates
