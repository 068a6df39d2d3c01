package variant

import (
	"fmt"

	"github.com/opensovd/mddc/internal/model"
)

// requiredSections must survive every merge; a fragment compiled under
// InheritNone has to supply them itself.
var requiredSections = []string{"schema", "meta", "ecu", "sessions"}

type mergePolicy struct {
	mode        model.InheritMode
	arrays      model.ArrayMerge
	allowDelete bool
}

// mergeTree applies an override fragment onto a base tree. Inputs are
// never mutated; the result is a fresh tree.
func mergeTree(variant string, base, overlay map[string]any, pol mergePolicy) (map[string]any, error) {
	switch pol.mode {
	case model.InheritNone:
		out := copyMap(overlay)
		for _, section := range requiredSections {
			if _, ok := out[section]; !ok {
				return nil, resErr(CodeSectionMissing, variant, section,
					"inheritance mode none requires a self-sufficient fragment, section missing")
			}
		}
		return out, nil

	case model.InheritOverride, "":
		out := copyMap(base)
		for k, v := range overlay {
			if v == nil {
				if !pol.allowDelete {
					return nil, resErr(CodeNullOverride, variant, k,
						"null override deletes only when allow_delete is set")
				}
				delete(out, k)
				continue
			}
			out[k] = copyValue(v)
		}
		return out, nil

	case model.InheritMerge:
		merged, err := deepMerge(variant, "", base, overlay, pol)
		if err != nil {
			return nil, err
		}
		return merged, nil

	default:
		return nil, resErr(CodeMergeConflict, variant, "",
			"unknown inheritance mode %q", pol.mode)
	}
}

func deepMerge(variant, path string, base, overlay map[string]any, pol mergePolicy) (map[string]any, error) {
	out := copyMap(base)
	for k, ov := range overlay {
		childPath := joinPath(path, k)

		if ov == nil {
			if !pol.allowDelete {
				return nil, resErr(CodeNullOverride, variant, childPath,
					"null override deletes only when allow_delete is set")
			}
			delete(out, k)
			continue
		}

		bv, exists := out[k]
		if !exists {
			out[k] = copyValue(ov)
			continue
		}

		switch ovTyped := ov.(type) {
		case map[string]any:
			bvMap, ok := bv.(map[string]any)
			if !ok {
				return nil, resErr(CodeMergeConflict, variant, childPath,
					"cannot merge mapping into %T", bv)
			}
			merged, err := deepMerge(variant, childPath, bvMap, ovTyped, pol)
			if err != nil {
				return nil, err
			}
			out[k] = merged

		case []any:
			bvArr, ok := bv.([]any)
			if !ok {
				return nil, resErr(CodeMergeConflict, variant, childPath,
					"cannot merge sequence into %T", bv)
			}
			out[k] = mergeArrays(bvArr, ovTyped, pol.arrays)

		default:
			if _, isMap := bv.(map[string]any); isMap {
				return nil, resErr(CodeMergeConflict, variant, childPath,
					"cannot replace mapping with scalar %v", ov)
			}
			if _, isArr := bv.([]any); isArr {
				return nil, resErr(CodeMergeConflict, variant, childPath,
					"cannot replace sequence with scalar %v", ov)
			}
			// Scalar on scalar: the override wins.
			out[k] = ov
		}
	}
	return out, nil
}

func mergeArrays(base, overlay []any, strategy model.ArrayMerge) []any {
	switch strategy {
	case model.ArrayAppend:
		out := make([]any, 0, len(base)+len(overlay))
		out = append(out, copySlice(base)...)
		out = append(out, copySlice(overlay)...)
		return out
	case model.ArrayPrepend:
		out := make([]any, 0, len(base)+len(overlay))
		out = append(out, copySlice(overlay)...)
		out = append(out, copySlice(base)...)
		return out
	default:
		return copySlice(overlay)
	}
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copySlice(s []any) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		return copyMap(typed)
	case []any:
		return copySlice(typed)
	default:
		return v
	}
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return fmt.Sprintf("%s.%s", path, key)
}
