package audience

import (
	"github.com/opensovd/mddc/internal/model"
)

// Summary counts what a filter pass removed, per category.
type Summary struct {
	Tag             string `json:"tag"`
	DIDs            int    `json:"dids"`
	Routines        int    `json:"routines"`
	Services        int    `json:"services"`
	DTCs            int    `json:"dtcs"`
	SnapshotRefs    int    `json:"snapshot_refs"`
	SnapshotRecords int    `json:"snapshot_records"`
	Types           int    `json:"types"`
	AccessPatterns  int    `json:"access_patterns"`
}

// Total returns the number of removed items across all categories.
func (s *Summary) Total() int {
	return s.DIDs + s.Routines + s.Services + s.DTCs +
		s.SnapshotRefs + s.SnapshotRecords + s.Types + s.AccessPatterns
}

// Filter projects the document down to one audience tag. The input is
// not modified. An empty tag keeps everything.
func Filter(doc *model.Document, tag string) (*model.Document, *Summary) {
	summary := &Summary{Tag: tag}
	if tag == "" {
		return doc, summary
	}

	out := *doc

	visible := func(aud []string) bool {
		if len(aud) == 0 {
			return true
		}
		for _, a := range aud {
			if a == tag {
				return true
			}
		}
		return false
	}

	// DIDs first; snapshot pruning depends on which survive.
	kept := make(map[model.HexInt]bool, len(doc.DIDs))
	out.DIDs = make(map[model.HexInt]*model.DID, len(doc.DIDs))
	for _, id := range model.SortedHexKeys(doc.DIDs) {
		did := doc.DIDs[id]
		if !visible(did.Audience) {
			summary.DIDs++
			continue
		}
		out.DIDs[id] = did
		kept[id] = true
	}

	out.Routines = make(map[model.HexInt]*model.Routine, len(doc.Routines))
	for _, id := range model.SortedHexKeys(doc.Routines) {
		r := doc.Routines[id]
		if !visible(r.Audience) {
			summary.Routines++
			continue
		}
		out.Routines[id] = r
	}

	if doc.Services != nil {
		services := *doc.Services
		if services.DiagnosticSessionControl != nil && !visible(services.DiagnosticSessionControl.Audience) {
			services.DiagnosticSessionControl = nil
			summary.Services++
		}
		if services.SecurityAccess != nil && !visible(services.SecurityAccess.Audience) {
			services.SecurityAccess = nil
			summary.Services++
		}
		if services.EcuReset != nil && !visible(services.EcuReset.Audience) {
			services.EcuReset = nil
			summary.Services++
		}
		services.Custom = make(map[string]*model.CustomService, len(doc.Services.Custom))
		for _, name := range model.SortedKeys(doc.Services.Custom) {
			svc := doc.Services.Custom[name]
			if !visible(svc.Audience) {
				summary.Services++
				continue
			}
			services.Custom[name] = svc
		}
		out.Services = &services
	}

	out.DTCs = make(map[model.HexInt]*model.DTC, len(doc.DTCs))
	for _, code := range model.SortedHexKeys(doc.DTCs) {
		dtc := doc.DTCs[code]
		if !visible(dtc.Audience) {
			summary.DTCs++
			continue
		}
		out.DTCs[code] = pruneDTC(dtc, kept, summary)
	}

	pruneOrphans(&out, summary)
	return &out, summary
}

// pruneDTC drops snapshot references to removed DIDs. A record whose
// references all pointed at removed DIDs disappears with them.
func pruneDTC(dtc *model.DTC, kept map[model.HexInt]bool, summary *Summary) *model.DTC {
	out := *dtc
	out.Snapshots = nil
	for _, snap := range dtc.Snapshots {
		filtered := snap
		filtered.DIDs = nil
		for _, ref := range snap.DIDs {
			if kept[ref] {
				filtered.DIDs = append(filtered.DIDs, ref)
			} else {
				summary.SnapshotRefs++
			}
		}
		if len(snap.DIDs) > 0 && len(filtered.DIDs) == 0 {
			summary.SnapshotRecords++
			continue
		}
		out.Snapshots = append(out.Snapshots, filtered)
	}
	return &out
}

// pruneOrphans removes named types and access patterns nothing in the
// filtered document references. Orphans are expected fallout of
// filtering, not errors.
func pruneOrphans(doc *model.Document, summary *Summary) {
	typeRefs := make(map[string]bool)
	patternRefs := make(map[string]bool)

	markType := func(ref model.TypeRef) {
		if ref.Name != "" {
			typeRefs[ref.Name] = true
		}
	}
	markPattern := func(name string) {
		if name != "" {
			patternRefs[name] = true
		}
	}

	for _, id := range model.SortedHexKeys(doc.DIDs) {
		did := doc.DIDs[id]
		markType(did.Type)
		markPattern(did.Access)
	}
	for _, id := range model.SortedHexKeys(doc.Routines) {
		r := doc.Routines[id]
		markPattern(r.Access)
		if r.Parameters == nil {
			continue
		}
		for _, list := range [][]model.RoutineParam{
			r.Parameters.StartRequest, r.Parameters.StartResponse,
			r.Parameters.StopRequest, r.Parameters.StopResponse,
			r.Parameters.ResultRequest, r.Parameters.ResultResponse,
		} {
			for _, p := range list {
				markType(p.Type)
			}
		}
	}
	for _, code := range model.SortedHexKeys(doc.DTCs) {
		for _, ext := range doc.DTCs[code].ExtendedData {
			markType(ext.Type)
		}
	}
	if doc.Services != nil {
		for _, cfg := range []*model.ServiceConfig{
			doc.Services.DiagnosticSessionControl,
			doc.Services.SecurityAccess,
			doc.Services.EcuReset,
		} {
			if cfg != nil {
				markPattern(cfg.Access)
			}
		}
		for _, name := range model.SortedKeys(doc.Services.Custom) {
			svc := doc.Services.Custom[name]
			markPattern(svc.Access)
			for _, p := range svc.ResponseParams {
				markType(p.Type)
			}
		}
	}

	// Named types may reference other named types through struct
	// fields; close over the reachable set before pruning.
	for changed := true; changed; {
		changed = false
		for _, name := range model.SortedKeys(doc.Types) {
			if !typeRefs[name] {
				continue
			}
			for _, f := range doc.Types[name].Fields {
				if f.Type.Name != "" && !typeRefs[f.Type.Name] {
					typeRefs[f.Type.Name] = true
					changed = true
				}
			}
		}
	}

	if len(doc.Types) > 0 {
		filtered := make(map[string]*model.TypeDefinition, len(doc.Types))
		for _, name := range model.SortedKeys(doc.Types) {
			if typeRefs[name] {
				filtered[name] = doc.Types[name]
			} else {
				summary.Types++
			}
		}
		doc.Types = filtered
	}

	if len(doc.AccessPatterns) > 0 {
		filtered := make(map[string]model.AccessPattern, len(doc.AccessPatterns))
		for _, name := range model.SortedKeys(doc.AccessPatterns) {
			if patternRefs[name] {
				filtered[name] = doc.AccessPatterns[name]
			} else {
				summary.AccessPatterns++
			}
		}
		doc.AccessPatterns = filtered
	}
}
