// Package schema is the structural validation boundary. The authoring
// schema is embedded as CUE; raw YAML trees are unified against it
// before the typed model is bound. Semantic cross-reference checks live
// in internal/validate, not here.
package schema

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// Source is the embedded structural schema. It pins the document shape:
// required sections, known keys, and scalar kinds. Cross-map name
// references are deliberately out of its reach.
const Source = `
#NameSet: "any" | "none" | string | [...string]

#Session: {
	id:           int | string
	alias?:       string
	description?: string
}

#SecurityLevel: {
	level:        int | string
	description?: string
	seed_size?:   int
	key_size?:    int
}

#AccessPattern: {
	sessions:       #NameSet
	security:       #NameSet
	authentication: #NameSet
	nrc_on_fail?:   int | string
}

#Variants: {
	detection_order?: [...string]
	fallback?:     string
	allow_delete?: bool
	definitions?: {[string]: {
		description?: string
		extends?:     string
		mode?:        "none" | "override" | "merge"
		array_merge?: "replace" | "append" | "prepend"
		detect?: {...}
		probe?: {
			session?:        string
			security?:       string
			authentication?: string
		}
		overrides?: {...}
	}}
}

#Document: {
	schema: "opensovd.cda.diagdesc/v1"
	meta: {
		author?:      string
		revision:     string
		description?: string
		domain?:      string
	}
	ecu: {
		id:   string
		name: string
		default_addressing_mode?: "physical" | "functional" | "both"
	}
	sessions: {[string]: #Session}
	security?: {[string]: #SecurityLevel}
	authentication?: {[string]: {description?: string}}
	access_patterns?: {[string]: #AccessPattern}
	types?: {[string]: {...}}
	dids?: {[string]: {...}}
	routines?: {[string]: {...}}
	dtc_config?: {...}
	dtcs?: {[string]: {...}}
	services?: {...}
	variants?:       #Variants
	identification?: {expected_idents?: {[string]: {...}}}
	comparams?: {...}
	audience?: {
		default?: string
		available?: [...string]
	}
}
`

// StructuralError is one shape violation reported by the schema check.
type StructuralError struct {
	Path    string
	Message string
	Pos     token.Pos
}

func (e *StructuralError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// Validate unifies a raw document tree against the embedded schema and
// returns every structural violation. A non-empty result blocks all
// further pipeline stages.
func Validate(tree map[string]any) []*StructuralError {
	ctx := cuecontext.New()

	schemaVal := ctx.CompileString(Source)
	if err := schemaVal.Err(); err != nil {
		return []*StructuralError{{Path: "schema", Message: err.Error()}}
	}
	docSchema := schemaVal.LookupPath(cue.ParsePath("#Document"))

	data := ctx.Encode(tree)
	if err := data.Err(); err != nil {
		return []*StructuralError{{Message: err.Error()}}
	}

	unified := docSchema.Unify(data)
	if err := unified.Validate(cue.Concrete(true), cue.Final()); err != nil {
		return structuralErrors(err)
	}
	return nil
}

// structuralErrors flattens a CUE error list into positioned
// StructuralErrors, preserving CUE's reporting order.
func structuralErrors(err error) []*StructuralError {
	var out []*StructuralError
	for _, e := range errors.Errors(err) {
		se := &StructuralError{
			Path:    strings.Join(errors.Path(e), "."),
			Message: e.Error(),
		}
		if positions := errors.Positions(e); len(positions) > 0 {
			se.Pos = positions[0]
		}
		out = append(out, se)
	}
	return out
}
