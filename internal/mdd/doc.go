// Package mdd serializes an IR database into the MDD artifact format:
// a self-describing binary blob wrapped in a length-delimited container
// with a fixed-width magic header.
//
// The blob is built bottom-up. Every DOP is pooled by structural key,
// so two services using structurally identical DOPs share one stored
// table and decode back to the same instance. The container carries the
// blob as its single diagnostic-description chunk, next to optional
// opaque chunks, each independently compressible.
package mdd
