// Package transform builds the IR graph from an effective, filtered
// document. Every DID becomes up to two services (read and write),
// every routine one service per operation, and the standard session,
// security, and reset services are generated from their declaration
// sections. Cross-references in the document become direct ownership
// in the IR.
//
// A type that cannot be lowered is fatal only for the entry that uses
// it: under the default skip-and-report policy the entry is excluded
// and recorded, and the build continues. Comparam resolution walks the
// override chain from most to least specific level; a required
// parameter no level defines fails the whole variant.
package transform
