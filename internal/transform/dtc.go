package transform

import (
	"fmt"

	"github.com/opensovd/mddc/internal/dopconv"
	"github.com/opensovd/mddc/internal/ir"
	"github.com/opensovd/mddc/internal/model"
)

// severityByte maps the authored severity class to the ISO 14229
// DTCSeverityMask byte.
func severityByte(class int, path string) (uint8, error) {
	switch class {
	case 0, 1:
		return 0x00, nil
	case 2:
		return 0x20, nil
	case 3:
		return 0x40, nil
	case 4:
		return 0x80, nil
	}
	return 0, transErr(CodeBadSeverity, path, "severity must be 1-4, got %d", class)
}

func (t *Transformer) buildDTCs() error {
	for _, code := range model.SortedHexKeys(t.doc.DTCs) {
		dtc := t.doc.DTCs[code]
		path := fmt.Sprintf("dtcs.%s", code)

		sev, err := severityByte(dtc.Severity, path)
		if err != nil {
			if serr := t.skip("dtc", dtc.Name, path, err); serr != nil {
				return serr
			}
			continue
		}

		entry := ir.DTC{
			Code:           uint32(code),
			Name:           dtc.Name,
			Description:    dtc.Description,
			Severity:       sev,
			FunctionalUnit: uint8(dtc.FunctionalUnit),
		}

		snapshots, err := t.dtcSnapshots(dtc, path)
		if err != nil {
			if serr := t.skip("dtc", dtc.Name, path, err); serr != nil {
				return serr
			}
			continue
		}
		entry.Snapshots = snapshots

		extended, err := t.dtcExtendedData(dtc, path)
		if err != nil {
			if serr := t.skip("dtc", dtc.Name, path, err); serr != nil {
				return serr
			}
			continue
		}
		entry.ExtendedData = extended

		t.db.DTCs = append(t.db.DTCs, entry)
	}
	return nil
}

// dtcSnapshots resolves the DTC's freeze-frame records, falling back
// to dtc_config defaults for records the DTC does not declare itself.
func (t *Transformer) dtcSnapshots(dtc *model.DTC, path string) ([]ir.SnapshotRecord, error) {
	records := dtc.Snapshots
	if len(records) == 0 && t.doc.DTCConfig != nil {
		for _, name := range model.SortedKeys(t.doc.DTCConfig.Snapshots) {
			records = append(records, t.doc.DTCConfig.Snapshots[name])
		}
	}

	out := make([]ir.SnapshotRecord, 0, len(records))
	for _, rec := range records {
		compiled := ir.SnapshotRecord{
			RecordNumber: uint8(rec.RecordNumber),
			Description:  rec.Description,
		}
		pos := 0
		for _, ref := range rec.DIDs {
			did, ok := t.doc.DIDs[ref]
			if !ok {
				// Audience filtering may have removed the DID; the
				// reference goes with it.
				continue
			}
			dop, err := t.conv.DOP(did.Name, did.Type, dopconv.Options{
				Path: fmt.Sprintf("%s.snapshots.%s", path, ref),
			})
			if err != nil {
				return nil, err
			}
			size := dopByteSize(dop)
			if size < 0 {
				size = dop.CodedType.MaxLength
			}
			compiled.Items = append(compiled.Items, ir.SnapshotItem{
				DID:          uint32(ref),
				Name:         did.Name,
				BytePosition: pos,
				ByteSize:     size,
			})
			pos += size
		}
		compiled.TotalSize = pos
		out = append(out, compiled)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func (t *Transformer) dtcExtendedData(dtc *model.DTC, path string) ([]ir.ExtendedDataRecord, error) {
	records := dtc.ExtendedData
	if len(records) == 0 && t.doc.DTCConfig != nil {
		for _, name := range model.SortedKeys(t.doc.DTCConfig.ExtendedData) {
			records = append(records, t.doc.DTCConfig.ExtendedData[name])
		}
	}

	out := make([]ir.ExtendedDataRecord, 0, len(records))
	for i, rec := range records {
		compiled := ir.ExtendedDataRecord{
			RecordNumber: uint8(rec.RecordNumber),
			Name:         rec.Name,
		}
		if !rec.Type.IsZero() {
			dop, err := t.conv.DOP(rec.Name, rec.Type, dopconv.Options{
				Path: fmt.Sprintf("%s.extended_data[%d]", path, i),
			})
			if err != nil {
				return nil, err
			}
			compiled.DOP = dop
			if size := dopByteSize(dop); size > 0 {
				compiled.ByteSize = size
			}
		}
		out = append(out, compiled)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}
