package transform

import (
	"github.com/opensovd/mddc/internal/ir"
	"github.com/opensovd/mddc/internal/model"
)

// buildVariants emits the variant matching table: the base variant
// plus one entry per declared variant with its detection expressed as
// matching parameters where the predicate allows a static encoding.
func (t *Transformer) buildVariants() {
	t.db.Variants = append(t.db.Variants, ir.Variant{
		Name:   t.doc.Ecu.Name,
		IsBase: true,
	})

	if t.opts.Variants == nil {
		return
	}
	for _, name := range model.SortedKeys(t.opts.Variants.Definitions) {
		def := t.opts.Variants.Definitions[name]
		entry := ir.Variant{
			Name:      name,
			ParentRef: def.Extends,
		}
		if def.Detect != nil {
			entry.MatchingParameters = t.matchingParams(def.Detect)
		}
		t.db.Variants = append(t.db.Variants, entry)
	}
}

// matchingParams lowers the statically encodable leaves of a detection
// predicate. Equality and prefix checks on readable DIDs become
// matching parameters against the DID's read service; probe-dependent
// leaves (sessions, bitmasks, regexes) have no static encoding and are
// left to runtime detection.
func (t *Transformer) matchingParams(p *model.Predicate) []ir.MatchingParameter {
	var out []ir.MatchingParameter

	switch p.Kind() {
	case model.PredAll, model.PredAny:
		children := p.All
		if len(children) == 0 {
			children = p.Any
		}
		for _, child := range children {
			out = append(out, t.matchingParams(child)...)
		}

	case model.PredEquals:
		if mp, ok := t.didMatch(p.Equals); ok {
			out = append(out, mp)
		}

	case model.PredPrefix:
		if mp, ok := t.didMatch(p.Prefix); ok {
			out = append(out, mp)
		}

	case model.PredServiceProbe:
		out = append(out, probeMatch(p.ServiceProbe))

	case model.PredIdentRef:
		if t.opts.Identification != nil {
			if probe := t.opts.Identification.ExpectedIdents[p.IdentRef]; probe != nil {
				out = append(out, probeMatch(probe))
			}
		}
	}
	return out
}

func (t *Transformer) didMatch(m *model.ValueMatch) (ir.MatchingParameter, bool) {
	svcName, ok := t.db.DIDReadServices[uint32(m.DID)]
	if !ok {
		return ir.MatchingParameter{}, false
	}
	return ir.MatchingParameter{
		ExpectedValue:         m.Value,
		DiagServiceRef:        svcName,
		OutParamRef:           "DATA",
		UsePhysicalAddressing: true,
	}, true
}

func probeMatch(probe *model.ServiceProbe) ir.MatchingParameter {
	param := probe.ParamPath
	if param == "" {
		param = probe.ParamID
	}
	return ir.MatchingParameter{
		ExpectedValue:         probe.ExpectedValue,
		DiagServiceRef:        probe.Service,
		OutParamRef:           param,
		UsePhysicalAddressing: true,
	}
}
