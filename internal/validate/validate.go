package validate

import (
	"fmt"

	"github.com/opensovd/mddc/internal/model"
)

// Document runs every semantic check against a structurally valid
// document and returns the ordered issue list.
func Document(doc *model.Document) *Result {
	v := &checker{doc: doc, result: &Result{}}

	v.collectNames()
	v.checkAccessPatterns()
	v.checkDIDs()
	v.checkRoutines()
	v.checkDTCs()
	v.checkServices()
	v.checkVariants()
	v.checkTypes()
	v.checkUnused()

	return v.result
}

type checker struct {
	doc    *model.Document
	result *Result

	sessions  map[string]bool
	security  map[string]bool
	authRoles map[string]bool
	patterns  map[string]bool
	types     map[string]bool

	usedTypes    map[string]bool
	usedPatterns map[string]bool
}

func (v *checker) collectNames() {
	v.sessions = make(map[string]bool)
	for name := range v.doc.Sessions {
		v.sessions[name] = true
	}
	v.security = make(map[string]bool)
	for name := range v.doc.Security {
		v.security[name] = true
	}
	v.authRoles = make(map[string]bool)
	for name := range v.doc.Authentication {
		v.authRoles[name] = true
	}
	v.patterns = make(map[string]bool)
	for name := range v.doc.AccessPatterns {
		v.patterns[name] = true
	}
	v.types = make(map[string]bool)
	for name := range v.doc.Types {
		v.types[name] = true
	}
	v.usedTypes = make(map[string]bool)
	v.usedPatterns = make(map[string]bool)
}

func (v *checker) typeKnown(name string) bool {
	if _, builtin := model.BuiltinTypes[name]; builtin {
		return true
	}
	return v.types[name]
}

// checkAccessPatterns verifies the names inside each pattern resolve.
func (v *checker) checkAccessPatterns() {
	for _, name := range model.SortedKeys(v.doc.AccessPatterns) {
		pattern := v.doc.AccessPatterns[name]
		base := "access_patterns." + name

		if !pattern.Sessions.IsAny() {
			for _, s := range pattern.Sessions.Names {
				if !v.sessions[s] {
					v.result.addError(CodeUndefinedSession, base+".sessions",
						fmt.Sprintf("access pattern %q references undefined session %q", name, s),
						fmt.Sprintf("define %q in the sessions section", s))
				}
			}
		}
		if !pattern.Security.IsNone() {
			for _, s := range pattern.Security.Names {
				if !v.security[s] {
					v.result.addError(CodeUndefinedSecurity, base+".security",
						fmt.Sprintf("access pattern %q references undefined security level %q", name, s),
						fmt.Sprintf("define %q in the security section or use none", s))
				}
			}
		}
		if !pattern.Authentication.IsNone() {
			for _, a := range pattern.Authentication.Names {
				if !v.authRoles[a] {
					v.result.addError(CodeUndefinedAuthRole, base+".authentication",
						fmt.Sprintf("access pattern %q references undefined authentication role %q", name, a),
						fmt.Sprintf("define %q in the authentication section or use none", a))
				}
			}
		}
	}
}

func (v *checker) checkAccessRef(ref, path string) {
	if ref == "" {
		return
	}
	v.usedPatterns[ref] = true
	if !v.patterns[ref] {
		v.result.addError(CodeUndefinedAccessPattern, path,
			fmt.Sprintf("undefined access pattern %q", ref),
			fmt.Sprintf("define %q in the access_patterns section", ref))
	}
}

func (v *checker) checkTypeRef(ref model.TypeRef, path string) {
	if ref.Inline != nil {
		for _, field := range ref.Inline.Fields {
			v.checkTypeRef(field.Type, path+".fields."+field.Name)
		}
		return
	}
	if ref.Name == "" {
		return
	}
	v.usedTypes[ref.Name] = true
	if !v.typeKnown(ref.Name) {
		v.result.addError(CodeUndefinedType, path,
			fmt.Sprintf("undefined type %q", ref.Name),
			fmt.Sprintf("define %q in the types section", ref.Name))
	}
}

func (v *checker) checkDIDs() {
	for _, id := range model.SortedHexKeys(v.doc.DIDs) {
		did := v.doc.DIDs[id]
		base := "dids." + id.String()

		v.checkTypeRef(did.Type, base+".type")
		v.checkAccessRef(did.Access, base+".access")

		for i, cond := range did.WriteConditions {
			path := fmt.Sprintf("%s.write_conditions[%d]", base, i)
			if cond.Session != "" && !v.sessions[cond.Session] {
				v.result.addError(CodeUndefinedSession, path,
					fmt.Sprintf("undefined session %q", cond.Session), "")
			}
			if cond.Security != "" && !v.security[cond.Security] {
				v.result.addError(CodeUndefinedSecurity, path,
					fmt.Sprintf("undefined security level %q", cond.Security), "")
			}
			if cond.Authentication != "" && !v.authRoles[cond.Authentication] {
				v.result.addError(CodeUndefinedAuthRole, path,
					fmt.Sprintf("undefined authentication role %q", cond.Authentication), "")
			}
		}
	}
}

func (v *checker) checkRoutines() {
	for _, id := range model.SortedHexKeys(v.doc.Routines) {
		routine := v.doc.Routines[id]
		base := "routines." + id.String()

		v.checkAccessRef(routine.Access, base+".access")
		if routine.Parameters == nil {
			continue
		}
		lists := []struct {
			name   string
			params []model.RoutineParam
		}{
			{"start_request", routine.Parameters.StartRequest},
			{"start_response", routine.Parameters.StartResponse},
			{"stop_request", routine.Parameters.StopRequest},
			{"stop_response", routine.Parameters.StopResponse},
			{"result_request", routine.Parameters.ResultRequest},
			{"result_response", routine.Parameters.ResultResponse},
		}
		for _, list := range lists {
			for _, p := range list.params {
				v.checkTypeRef(p.Type, fmt.Sprintf("%s.parameters.%s.%s.type", base, list.name, p.Name))
			}
		}
	}
}

func (v *checker) checkDTCs() {
	for _, code := range model.SortedHexKeys(v.doc.DTCs) {
		dtc := v.doc.DTCs[code]
		base := "dtcs." + code.String()
		for i, ext := range dtc.ExtendedData {
			if !ext.Type.IsZero() {
				v.checkTypeRef(ext.Type, fmt.Sprintf("%s.extended_data[%d].type", base, i))
			}
		}
	}
}

func (v *checker) checkServices() {
	if v.doc.Services == nil {
		return
	}
	svc := v.doc.Services
	if svc.DiagnosticSessionControl != nil {
		v.checkAccessRef(svc.DiagnosticSessionControl.Access, "services.diagnosticSessionControl.access")
	}
	if svc.SecurityAccess != nil {
		v.checkAccessRef(svc.SecurityAccess.Access, "services.securityAccess.access")
	}
	if svc.EcuReset != nil {
		v.checkAccessRef(svc.EcuReset.Access, "services.ecuReset.access")
	}
	for _, name := range model.SortedKeys(svc.Custom) {
		custom := svc.Custom[name]
		base := "services.custom." + name
		v.checkAccessRef(custom.Access, base+".access")
		for i, p := range custom.ResponseParams {
			v.checkTypeRef(p.Type, fmt.Sprintf("%s.response_params[%d].type", base, i))
		}
	}
}

// checkVariants validates detection order membership, fallback
// membership, the extends graph, probe states, and predicate leaves.
func (v *checker) checkVariants() {
	variants := v.doc.Variants
	if variants == nil {
		return
	}

	for _, name := range variants.DetectionOrder {
		if _, ok := variants.Definitions[name]; !ok {
			v.result.addError(CodeUnknownDetectionEntry, "variants.detection_order",
				fmt.Sprintf("detection_order entry %q is not a defined variant", name),
				fmt.Sprintf("define %q under variants.definitions", name))
		}
	}
	if variants.Fallback != "" {
		if _, ok := variants.Definitions[variants.Fallback]; !ok {
			v.result.addError(CodeUnknownFallback, "variants.fallback",
				fmt.Sprintf("fallback %q is not a defined variant", variants.Fallback),
				fmt.Sprintf("define %q under variants.definitions", variants.Fallback))
		}
	}

	for _, name := range model.SortedKeys(variants.Definitions) {
		def := variants.Definitions[name]
		base := "variants.definitions." + name

		if def.Extends != "" {
			if _, ok := variants.Definitions[def.Extends]; !ok {
				v.result.addError(CodeUnknownExtendsBase, base+".extends",
					fmt.Sprintf("variant %q extends undefined variant %q", name, def.Extends), "")
			}
		}
		if def.Probe != nil {
			if def.Probe.Session != "" && !v.sessions[def.Probe.Session] {
				v.result.addError(CodeUndefinedSession, base+".probe.session",
					fmt.Sprintf("undefined session %q", def.Probe.Session), "")
			}
			if def.Probe.Security != "" && !v.security[def.Probe.Security] {
				v.result.addError(CodeUndefinedSecurity, base+".probe.security",
					fmt.Sprintf("undefined security level %q", def.Probe.Security), "")
			}
		}
		if def.Detect != nil {
			v.checkPredicate(def.Detect, base+".detect")
		}
	}

	for _, cycle := range extendsCycles(variants.Definitions) {
		v.result.addError(CodeExtendsCycle, "variants.definitions",
			fmt.Sprintf("variant inheritance cycle: %s", formatCycle(cycle)),
			"break the cycle by removing one extends link")
	}
}

func (v *checker) checkPredicate(p *model.Predicate, path string) {
	switch p.Kind() {
	case model.PredAll:
		for i, child := range p.All {
			v.checkPredicate(child, fmt.Sprintf("%s.all[%d]", path, i))
		}
	case model.PredAny:
		for i, child := range p.Any {
			v.checkPredicate(child, fmt.Sprintf("%s.any[%d]", path, i))
		}
	case model.PredNot:
		v.checkPredicate(p.Not, path+".not")
	case model.PredSessionAvailable:
		if !v.sessions[p.SessionAvailable] {
			v.result.addError(CodeUndefinedSession, path+".session_available",
				fmt.Sprintf("undefined session %q", p.SessionAvailable), "")
		}
	case model.PredIdentRef:
		if !v.identKnown(p.IdentRef) {
			v.result.addError(CodeUnknownIdentRef, path+".ident_ref",
				fmt.Sprintf("identification check %q is not declared", p.IdentRef),
				fmt.Sprintf("declare %q under identification.expected_idents", p.IdentRef))
		}
	case model.PredServiceProbe:
		v.checkServiceProbe(p.ServiceProbe, path+".service_probe")
	}
}

func (v *checker) identKnown(name string) bool {
	return v.doc.Identification != nil && v.doc.Identification.ExpectedIdents[name] != nil
}

// checkServiceProbe resolves a response-parameter match against the
// named custom service's declared response shape.
func (v *checker) checkServiceProbe(probe *model.ServiceProbe, path string) {
	if v.doc.Services == nil || v.doc.Services.Custom[probe.Service] == nil {
		v.result.addError(CodeUnresolvableProbe, path,
			fmt.Sprintf("service probe references unknown service %q", probe.Service),
			fmt.Sprintf("declare %q under services.custom", probe.Service))
		return
	}
	param := probe.ParamID
	if param == "" {
		param = probe.ParamPath
	}
	if param == "" {
		return
	}
	for _, decl := range v.doc.Services.Custom[probe.Service].ResponseParams {
		if decl.ID == param {
			return
		}
	}
	v.result.addError(CodeUnresolvableProbe, path,
		fmt.Sprintf("service %q declares no response parameter %q", probe.Service, param),
		"")
}

// checkTypes validates per-type consistency the structural schema does
// not see: endianness on multi-byte atomics, length declarations on
// variable-length kinds, and overlapping text-table ranges.
func (v *checker) checkTypes() {
	for _, name := range model.SortedKeys(v.doc.Types) {
		v.checkTypeDef(name, v.doc.Types[name], "types."+name)
	}
}

func (v *checker) checkTypeDef(name string, def *model.TypeDefinition, path string) {
	width := def.Base.BitWidth()
	if def.BitLength != nil {
		width = *def.BitLength
	}
	if def.Base.IsInteger() && width > 8 && def.Endian == "" {
		v.result.addError(CodeMissingEndianness, path,
			fmt.Sprintf("type %q is wider than 8 bits and must declare endian", name),
			"set endian: big or endian: little")
	}

	if def.Base.IsVariableLength() && def.Length == nil {
		if def.MinLength == nil || def.MaxLength == nil {
			v.result.addError(CodeMissingLength, path,
				fmt.Sprintf("type %q needs either length or min_length/max_length", name), "")
		} else if def.Termination == "" {
			v.result.addError(CodeMissingLength, path,
				fmt.Sprintf("variable-length type %q must declare a termination policy", name),
				"set termination: zero, end_of_pdu, length_field, or none")
		}
	}

	v.checkRangeOverlap(def, path)
}

// checkRangeOverlap rejects text tables whose value ranges intersect.
// Overlap is an authoring error, never a silent first-match.
func (v *checker) checkRangeOverlap(def *model.TypeDefinition, path string) {
	type span struct{ lo, hi uint32 }
	var spans []span
	for i, entry := range def.Entries {
		var s span
		switch {
		case entry.Value != nil:
			s = span{uint32(*entry.Value), uint32(*entry.Value)}
		case len(entry.Range) == 2:
			s = span{uint32(entry.Range[0]), uint32(entry.Range[1])}
		default:
			continue
		}
		for _, prev := range spans {
			if s.lo <= prev.hi && prev.lo <= s.hi {
				v.result.addError(CodeOverlappingRanges,
					fmt.Sprintf("%s.entries[%d]", path, i),
					fmt.Sprintf("text table entry overlaps an earlier entry (%#x..%#x vs %#x..%#x)",
						s.lo, s.hi, prev.lo, prev.hi),
					"make value ranges disjoint")
				break
			}
		}
		spans = append(spans, s)
	}
}

// checkUnused emits advisory warnings for defined-but-unreferenced
// entities. Warnings never block compilation.
func (v *checker) checkUnused() {
	for _, name := range model.SortedKeys(v.doc.Types) {
		if !v.usedTypes[name] {
			v.result.addWarning(CodeUnusedType, "types."+name,
				fmt.Sprintf("type %q is defined but never referenced", name), "")
		}
	}
	for _, name := range model.SortedKeys(v.doc.AccessPatterns) {
		if !v.usedPatterns[name] {
			v.result.addWarning(CodeUnusedAccessPattern, "access_patterns."+name,
				fmt.Sprintf("access pattern %q is defined but never referenced", name), "")
		}
	}
}
