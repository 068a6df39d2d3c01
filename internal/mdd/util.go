package mdd

import (
	"sort"

	"github.com/opensovd/mddc/internal/ir"
)

func paramsOf(req *ir.Request) []ir.Param {
	if req == nil {
		return nil
	}
	return req.Params
}

func respParamsOf(resp *ir.Response) []ir.Param {
	if resp == nil {
		return nil
	}
	return resp.Params
}

func sortedStringKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedUint32Keys[V any](m map[uint32]V) []uint32 {
	keys := make([]uint32, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
