// Package model provides the typed in-memory representation of an
// authored diagnostic description document.
//
// This package contains type definitions and YAML binding only. All
// other internal packages import model; model imports nothing internal.
// A Document is immutable once it has passed structural and semantic
// validation - pipeline stages derive new values rather than mutating it.
package model
