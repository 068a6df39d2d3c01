// Package dopconv lowers declarative type definitions to wire-level
// data object properties: a coded type describing the bit layout plus
// an optional computation method describing the internal-to-physical
// mapping.
//
// Conversion is total over well-formed definitions and fails with a
// coded error otherwise. A failed conversion is fatal only for the
// entry that referenced the type; callers decide whether to skip and
// report or abort.
package dopconv
