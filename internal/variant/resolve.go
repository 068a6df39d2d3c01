package variant

import (
	"regexp"
	"strings"

	"github.com/opensovd/mddc/internal/model"
	"github.com/opensovd/mddc/internal/schema"
)

// State tracks a resolver through its lifecycle.
type State int

const (
	Unresolved State = iota
	Detecting
	Merging
	Resolved
	Failed
)

func (s State) String() string {
	switch s {
	case Unresolved:
		return "unresolved"
	case Detecting:
		return "detecting"
	case Merging:
		return "merging"
	case Resolved:
		return "resolved"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// ProbeContext answers the runtime questions detection predicates ask.
// Offline compilation skips detection and forces a variant with
// Materialize.
type ProbeContext interface {
	// DIDString returns the decoded string value of a data identifier.
	DIDString(did uint32) (string, bool)
	// DIDBytes returns the raw bytes of a data identifier.
	DIDBytes(did uint32) ([]byte, bool)
	// SessionActive reports whether the named session can be entered.
	SessionActive(name string) bool
	// ServiceResponse returns the value of one response parameter of a
	// probed service, addressed by parameter id or path.
	ServiceResponse(service, param string) (string, bool)
}

// Result is one materialized variant: the merged raw tree and the
// re-bound document.
type Result struct {
	Name     string
	Document *model.Document
	Tree     map[string]any
}

// Resolver selects and materializes variants of one document. It is
// not safe for concurrent use; create one per compile.
type Resolver struct {
	doc   *model.Document
	tree  map[string]any
	state State
}

// NewResolver returns a resolver over a bound document and its raw tree.
func NewResolver(doc *model.Document, tree map[string]any) *Resolver {
	return &Resolver{doc: doc, tree: tree, state: Unresolved}
}

// State returns the resolver's current lifecycle state.
func (r *Resolver) State() State { return r.state }

// Detect evaluates detection predicates in declared order against the
// probe context. The first variant whose predicate holds wins; when
// none does, the declared fallback is selected. No match and no
// fallback is a fatal configuration error.
func (r *Resolver) Detect(ctx ProbeContext) (string, error) {
	r.state = Detecting
	vs := r.doc.Variants
	if vs == nil || len(vs.Definitions) == 0 {
		r.state = Failed
		return "", resErr(CodeNoFallback, "", "", "document declares no variants")
	}

	for _, name := range vs.DetectionOrder {
		def, ok := vs.Definitions[name]
		if !ok {
			r.state = Failed
			return "", resErr(CodeUnknownVariant, name, "variants.detection_order",
				"detection_order names an undefined variant")
		}
		if def.Detect == nil {
			continue
		}
		matched, err := r.eval(name, def.Detect, ctx)
		if err != nil {
			r.state = Failed
			return "", err
		}
		if matched {
			r.state = Resolved
			return name, nil
		}
	}

	if vs.Fallback != "" {
		if _, ok := vs.Definitions[vs.Fallback]; !ok {
			r.state = Failed
			return "", resErr(CodeUnknownVariant, vs.Fallback, "variants.fallback",
				"fallback names an undefined variant")
		}
		r.state = Resolved
		return vs.Fallback, nil
	}

	r.state = Failed
	return "", resErr(CodeNoFallback, "", "variants",
		"no variant matched and no fallback is declared")
}

// Materialize merges the named variant's override chain onto the base
// document and re-binds the result. Failure affects only this variant.
func (r *Resolver) Materialize(name string) (*Result, error) {
	r.state = Merging
	res, err := r.materialize(name)
	if err != nil {
		r.state = Failed
		return nil, err
	}
	r.state = Resolved
	return res, nil
}

// MaterializeAll materializes every defined variant. Failures are
// collected per variant; successful siblings are still returned.
func (r *Resolver) MaterializeAll() ([]*Result, []error) {
	vs := r.doc.Variants
	if vs == nil {
		return nil, nil
	}
	var (
		results []*Result
		errs    []error
	)
	for _, name := range model.SortedKeys(vs.Definitions) {
		res, err := r.materialize(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		results = append(results, res)
	}
	return results, errs
}

func (r *Resolver) materialize(name string) (*Result, error) {
	vs := r.doc.Variants
	if vs == nil {
		return nil, resErr(CodeUnknownVariant, name, "", "document declares no variants")
	}
	if _, ok := vs.Definitions[name]; !ok {
		return nil, resErr(CodeUnknownVariant, name, "", "undefined variant")
	}

	chain, err := r.baseChain(name)
	if err != nil {
		return nil, err
	}

	// The variant sections never survive into an effective document.
	effective := copyMap(r.tree)
	delete(effective, "variants")
	delete(effective, "identification")

	// Apply overrides outermost base first so the winning variant's
	// fragment lands last.
	for i := len(chain) - 1; i >= 0; i-- {
		def := vs.Definitions[chain[i]]
		if len(def.Overrides) == 0 {
			continue
		}
		effective, err = mergeTree(chain[i], effective, def.Overrides, mergePolicy{
			mode:        def.Mode,
			arrays:      def.ArrayMerge,
			allowDelete: vs.AllowDelete,
		})
		if err != nil {
			return nil, err
		}
	}

	doc, err := schema.BindDocument(effective)
	if err != nil {
		return nil, resErr(CodeMergeConflict, name, "", "merged document does not bind: %v", err)
	}
	return &Result{Name: name, Document: doc, Tree: effective}, nil
}

// baseChain returns [name, parent, grandparent, ...], guarding against
// extends cycles and unknown bases.
func (r *Resolver) baseChain(name string) ([]string, error) {
	vs := r.doc.Variants
	var chain []string
	seen := make(map[string]bool)
	for cur := name; cur != ""; {
		if seen[cur] {
			return nil, resErr(CodeExtendsCycle, name, "variants."+cur+".extends",
				"extends chain forms a cycle through %q", cur)
		}
		seen[cur] = true
		def, ok := vs.Definitions[cur]
		if !ok {
			return nil, resErr(CodeUnknownVariant, name, "variants."+cur,
				"extends names an undefined variant %q", cur)
		}
		chain = append(chain, cur)
		cur = def.Extends
	}
	return chain, nil
}

func (r *Resolver) eval(variant string, p *model.Predicate, ctx ProbeContext) (bool, error) {
	switch p.Kind() {
	case model.PredAll:
		for _, child := range p.All {
			ok, err := r.eval(variant, child, ctx)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil

	case model.PredAny:
		for _, child := range p.Any {
			ok, err := r.eval(variant, child, ctx)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case model.PredNot:
		ok, err := r.eval(variant, p.Not, ctx)
		return !ok, err

	case model.PredEquals:
		v, ok := ctx.DIDString(uint32(p.Equals.DID))
		return ok && v == p.Equals.Value, nil

	case model.PredPrefix:
		v, ok := ctx.DIDString(uint32(p.Prefix.DID))
		return ok && strings.HasPrefix(v, p.Prefix.Value), nil

	case model.PredBitmask:
		raw, ok := ctx.DIDBytes(uint32(p.Bitmask.DID))
		if !ok {
			return false, nil
		}
		var v uint32
		for _, b := range raw {
			v = v<<8 | uint32(b)
		}
		return v&uint32(p.Bitmask.Mask) == uint32(p.Bitmask.Value), nil

	case model.PredRegex:
		re, err := regexp.Compile(p.Regex.Pattern)
		if err != nil {
			return false, resErr(CodeBadRegex, variant, "", "invalid pattern %q: %v", p.Regex.Pattern, err)
		}
		v, ok := ctx.DIDString(uint32(p.Regex.DID))
		return ok && re.MatchString(v), nil

	case model.PredSessionAvailable:
		return ctx.SessionActive(p.SessionAvailable), nil

	case model.PredServiceProbe:
		return evalProbe(p.ServiceProbe, ctx), nil

	case model.PredIdentRef:
		probe := r.lookupIdent(p.IdentRef)
		if probe == nil {
			return false, resErr(CodeUnknownIdentRef, variant, "",
				"ident_ref %q is not declared under identification", p.IdentRef)
		}
		return evalProbe(probe, ctx), nil

	default:
		return false, nil
	}
}

func (r *Resolver) lookupIdent(name string) *model.ServiceProbe {
	if r.doc.Identification == nil {
		return nil
	}
	return r.doc.Identification.ExpectedIdents[name]
}

func evalProbe(probe *model.ServiceProbe, ctx ProbeContext) bool {
	param := probe.ParamPath
	if param == "" {
		param = probe.ParamID
	}
	v, ok := ctx.ServiceResponse(probe.Service, param)
	return ok && v == probe.ExpectedValue
}
