// Package audience projects an effective document down to one audience
// tag. Filtering is a pure function: it removes DIDs, routines,
// service blocks, and DTCs whose declared audience excludes the tag,
// prunes snapshot references left dangling by that removal, then drops
// types and access patterns nothing references anymore.
//
// Filtering never errors and never removes structurally required
// sections. Applying the same tag twice is a no-op.
package audience
