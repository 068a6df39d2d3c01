// Package validate implements the semantic validator: cross-reference
// checks the structural schema cannot express. Validation is a pure
// function over the document; it never mutates its input, and issue
// ordering follows document traversal order (sorted keys) so output is
// reproducible across runs.
package validate
