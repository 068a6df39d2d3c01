// Package variant selects and materializes ECU variants. Detection
// evaluates each variant's predicate tree in declared order against a
// probe context; the winner's override fragment is merged onto its
// transitive base chain, innermost first, producing one self-sufficient
// effective document per variant.
//
// Merging operates on the raw YAML tree, not the bound document, so
// override fragments compose with the same key spelling the author
// wrote. The merged tree is re-bound through the schema afterwards.
package variant
