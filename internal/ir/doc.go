// Package ir provides the intermediate representation the transformer
// builds and the serializer consumes: coded types, computation methods,
// DOPs, diagnostic services, and the database root.
//
// This package contains type definitions plus the canonical encoding
// used for structural DOP identity. All other compiler packages import
// ir; ir imports nothing internal, which keeps it the foundational
// layer with no circular dependencies.
//
// IR values are built once per (variant, audience) compile and never
// mutated afterwards; deduplication relies on that immutability.
package ir
