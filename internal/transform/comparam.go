package transform

import (
	"github.com/opensovd/mddc/internal/ir"
	"github.com/opensovd/mddc/internal/model"
)

// comparamResolver answers "what is parameter X worth here" by walking
// the override chain service -> entry -> variant -> ecu -> protocol ->
// global and stopping at the first level that defines the key.
type comparamResolver struct {
	defs     map[string]model.ComparamDef
	variant  map[string]string
	ecu      map[string]string
	protocol map[string]string
	global   map[string]string
}

func newComparamResolver(cp *model.Comparams) *comparamResolver {
	r := &comparamResolver{}
	if cp == nil {
		return r
	}
	r.defs = cp.Definitions
	r.variant = cp.Variant
	r.ecu = cp.Ecu
	r.protocol = cp.Protocol
	r.global = cp.Global
	return r
}

// resolve returns the value and winning level for one key. The service
// and entry maps are the two innermost levels, supplied by the caller
// because they live on the service or DID/routine being transformed.
func (r *comparamResolver) resolve(key string, service, entry map[string]string) (string, model.ComparamLevel, bool) {
	if v, ok := service[key]; ok {
		return v, model.LevelService, true
	}
	if v, ok := entry[key]; ok {
		return v, model.LevelEntry, true
	}
	if v, ok := r.variant[key]; ok {
		return v, model.LevelVariant, true
	}
	if v, ok := r.ecu[key]; ok {
		return v, model.LevelEcu, true
	}
	if v, ok := r.protocol[key]; ok {
		return v, model.LevelProtocol, true
	}
	if v, ok := r.global[key]; ok {
		return v, model.LevelGlobal, true
	}
	return "", "", false
}

// resolveAll resolves every defined parameter for one scope. Required
// parameters that no level defines are fatal; optional ones fall back
// to their declared default.
func (r *comparamResolver) resolveAll(path string, service, entry map[string]string) (map[string]ir.ComparamValue, error) {
	if len(r.defs) == 0 && len(service) == 0 && len(entry) == 0 {
		return nil, nil
	}
	out := make(map[string]ir.ComparamValue)

	for _, key := range model.SortedKeys(r.defs) {
		def := r.defs[key]
		v, level, ok := r.resolve(key, service, entry)
		if ok {
			out[key] = ir.ComparamValue{Value: v, Level: string(level)}
			continue
		}
		if def.Required {
			return nil, transErr(CodeRequiredComparam, path,
				"required comparam %q is not defined at any level", key)
		}
		if def.Default != "" {
			out[key] = ir.ComparamValue{Value: def.Default, Level: "default"}
		}
	}

	// Undeclared keys set directly on the scope still resolve; they
	// just carry no required/default semantics.
	for _, scope := range []struct {
		m     map[string]string
		level model.ComparamLevel
	}{{entry, model.LevelEntry}, {service, model.LevelService}} {
		for k, v := range scope.m {
			if _, declared := r.defs[k]; declared {
				continue
			}
			out[k] = ir.ComparamValue{Value: v, Level: string(scope.level)}
		}
	}

	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// flatten reduces resolved values to the plain map a service record
// carries.
func flatten(resolved map[string]ir.ComparamValue) map[string]string {
	if len(resolved) == 0 {
		return nil
	}
	out := make(map[string]string, len(resolved))
	for k, v := range resolved {
		out[k] = v.Value
	}
	return out
}
