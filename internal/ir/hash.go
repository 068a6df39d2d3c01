package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for structural-identity hashing. The version suffix
// allows a future algorithm migration without key collisions.
const (
	DomainDOP     = "mddc/dop/v1"
	DomainService = "mddc/service/v1"
)

// hashWithDomain computes SHA-256 over domain + 0x00 + data. The null
// separator prevents boundary ambiguity between domain and payload.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// StructuralKey computes the content-addressed identity of a DOP.
// Two DOPs with the same key decode and convert identically and are
// deduplicated in the artifact regardless of their names.
func (d *DOP) StructuralKey() (string, error) {
	obj := map[string]any{
		"coded_type":    codedTypeIdentity(&d.CodedType),
		"physical_type": d.PhysicalType.String(),
		"unit":          d.Unit,
	}
	if d.CompuMethod != nil {
		obj["compu_method"] = compuMethodIdentity(d.CompuMethod)
	}
	if len(d.StructFields) > 0 {
		fields := make([]any, len(d.StructFields))
		for i := range d.StructFields {
			fields[i] = paramIdentity(&d.StructFields[i])
		}
		obj["struct_fields"] = fields
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("StructuralKey: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainDOP, canonical), nil
}

// MustStructuralKey is like StructuralKey but panics on error. Use
// only when the DOP is known to be well formed.
func (d *DOP) MustStructuralKey() string {
	key, err := d.StructuralKey()
	if err != nil {
		panic(err)
	}
	return key
}

func codedTypeIdentity(ct *CodedType) map[string]any {
	obj := map[string]any{
		"name":           int(ct.Name),
		"base_data_type": ct.BaseDataType.String(),
		"big_endian":     ct.BigEndian,
	}
	if ct.BitLength > 0 {
		obj["bit_length"] = ct.BitLength
	}
	if ct.BitPosition > 0 {
		obj["bit_position"] = ct.BitPosition
	}
	if ct.MinLength > 0 {
		obj["min_length"] = ct.MinLength
	}
	if ct.MaxLength > 0 {
		obj["max_length"] = ct.MaxLength
	}
	if ct.Termination != "" {
		obj["termination"] = string(ct.Termination)
	}
	if ct.LengthKeyRef != "" {
		obj["length_key_ref"] = ct.LengthKeyRef
	}
	return obj
}

func compuMethodIdentity(cm *CompuMethod) map[string]any {
	obj := map[string]any{
		"category": cm.Category.String(),
	}
	if cm.DefaultText != "" {
		obj["default_text"] = cm.DefaultText
	}
	if len(cm.Scales) > 0 {
		scales := make([]any, len(cm.Scales))
		for i := range cm.Scales {
			scales[i] = compuScaleIdentity(&cm.Scales[i])
		}
		obj["scales"] = scales
	}
	if cm.InternalMin != nil {
		obj["internal_min"] = *cm.InternalMin
	}
	if cm.InternalMax != nil {
		obj["internal_max"] = *cm.InternalMax
	}
	if cm.PhysicalMin != nil {
		obj["physical_min"] = *cm.PhysicalMin
	}
	if cm.PhysicalMax != nil {
		obj["physical_max"] = *cm.PhysicalMax
	}
	return obj
}

func compuScaleIdentity(cs *CompuScale) map[string]any {
	obj := map[string]any{}
	if cs.Scale != 0 {
		obj["scale"] = cs.Scale
	}
	if cs.Offset != 0 {
		obj["offset"] = cs.Offset
	}
	if cs.Divisor != 0 {
		obj["divisor"] = cs.Divisor
	}
	if cs.Shift != 0 {
		obj["shift"] = cs.Shift
	}
	if cs.Text != "" {
		obj["text"] = cs.Text
		obj["internal_low"] = cs.InternalLow
		obj["internal_high"] = cs.InternalHigh
	}
	if cs.LowerLimit != nil {
		obj["lower_limit"] = *cs.LowerLimit
	}
	if cs.UpperLimit != nil {
		obj["upper_limit"] = *cs.UpperLimit
	}
	return obj
}

func paramIdentity(p *Param) map[string]any {
	obj := map[string]any{
		"name":          p.Name,
		"type":          p.Type.String(),
		"byte_position": p.BytePosition,
		"bit_position":  p.BitPosition,
	}
	if p.CodedType != nil {
		obj["coded_type"] = codedTypeIdentity(p.CodedType)
	}
	if p.DOP != nil {
		obj["dop"] = p.DOP.MustStructuralKey()
	}
	return obj
}
