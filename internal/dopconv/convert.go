package dopconv

import (
	"fmt"
	"sort"

	"github.com/opensovd/mddc/internal/ir"
	"github.com/opensovd/mddc/internal/model"
)

// Converter resolves type references against a document's named types
// and lowers them to DOPs. It holds no per-compile cache; DOP
// deduplication happens in the serializer via structural keys.
type Converter struct {
	types map[string]*model.TypeDefinition
}

// New returns a converter over the document's named types.
func New(doc *model.Document) *Converter {
	return &Converter{types: doc.Types}
}

// Options adjust a single conversion.
type Options struct {
	// Path locates the converted type in the source document for
	// error reporting.
	Path string

	// LengthKeyRef names the parameter that supplies the byte count
	// for length_field termination. Empty when the surrounding
	// parameter list carries no usable length parameter.
	LengthKeyRef string
}

// Resolve returns the definition a type reference points at. Builtin
// base type names resolve to synthesized atomic definitions.
func (c *Converter) Resolve(ref model.TypeRef, path string) (*model.TypeDefinition, error) {
	if ref.Inline != nil {
		return ref.Inline, nil
	}
	if def, ok := c.types[ref.Name]; ok {
		return def, nil
	}
	if base, ok := model.BuiltinTypes[ref.Name]; ok {
		return &model.TypeDefinition{Base: base, Endian: model.BigEndian}, nil
	}
	return nil, convErr(CodeUnknownType, path, "unknown type %q", ref.Name)
}

// DOP lowers a type reference to a named data object property.
func (c *Converter) DOP(name string, ref model.TypeRef, opts Options) (*ir.DOP, error) {
	def, err := c.Resolve(ref, opts.Path)
	if err != nil {
		return nil, err
	}
	return c.convert(name, def, opts)
}

func (c *Converter) convert(name string, def *model.TypeDefinition, opts Options) (*ir.DOP, error) {
	switch def.Kind() {
	case model.KindStruct:
		return c.convertStruct(name, def, opts)
	case model.KindEnum:
		return c.convertEnum(name, def, opts)
	case model.KindTextTable:
		return c.convertTextTable(name, def, opts)
	default:
		return c.convertAtomic(name, def, opts)
	}
}

func (c *Converter) convertAtomic(name string, def *model.TypeDefinition, opts Options) (*ir.DOP, error) {
	ct, err := codedType(def, opts)
	if err != nil {
		return nil, err
	}

	dop := &ir.DOP{
		Name:      name,
		CodedType: *ct,
		Unit:      unitOf(def),
	}

	if def.Scale != nil || def.Offset != nil || def.Conversion != nil {
		cm, err := linearMethod(def, opts.Path)
		if err != nil {
			return nil, err
		}
		dop.CompuMethod = cm
		dop.PhysicalType = ir.DataFloat64
		return dop, nil
	}

	dop.CompuMethod = &ir.CompuMethod{Category: ir.CompuIdentical}
	dop.PhysicalType = ct.BaseDataType
	return dop, nil
}

func (c *Converter) convertEnum(name string, def *model.TypeDefinition, opts Options) (*ir.DOP, error) {
	if !def.Base.IsInteger() {
		return nil, convErr(CodeEnumBase, opts.Path, "enum requires an integer base, got %q", def.Base)
	}
	ct, err := codedType(def, opts)
	if err != nil {
		return nil, err
	}

	keys := make([]model.HexInt, 0, len(def.Enum))
	for k := range def.Enum {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	scales := make([]ir.CompuScale, len(keys))
	for i, k := range keys {
		scales[i] = ir.CompuScale{
			InternalLow:  uint32(k),
			InternalHigh: uint32(k),
			Text:         def.Enum[k],
		}
	}

	return &ir.DOP{
		Name:      name,
		CodedType: *ct,
		CompuMethod: &ir.CompuMethod{
			Category:    ir.CompuTextTable,
			Scales:      scales,
			DefaultText: def.DefaultText,
		},
		PhysicalType: ir.DataUnicode2String,
		Unit:         unitOf(def),
	}, nil
}

func (c *Converter) convertTextTable(name string, def *model.TypeDefinition, opts Options) (*ir.DOP, error) {
	if !def.Base.IsInteger() {
		return nil, convErr(CodeEnumBase, opts.Path, "text table requires an integer base, got %q", def.Base)
	}
	ct, err := codedType(def, opts)
	if err != nil {
		return nil, err
	}

	scales := make([]ir.CompuScale, 0, len(def.Entries))
	for i, e := range def.Entries {
		var low, high uint32
		switch {
		case e.Value != nil:
			low, high = uint32(*e.Value), uint32(*e.Value)
		case len(e.Range) == 2:
			low, high = uint32(e.Range[0]), uint32(e.Range[1])
		default:
			return nil, convErr(CodeBadConstraints, opts.Path,
				"entries[%d]: needs a value or a two-element range", i)
		}
		scales = append(scales, ir.CompuScale{InternalLow: low, InternalHigh: high, Text: e.Text})
	}

	return &ir.DOP{
		Name:      name,
		CodedType: *ct,
		CompuMethod: &ir.CompuMethod{
			Category:    ir.CompuTextTable,
			Scales:      scales,
			DefaultText: def.DefaultText,
		},
		PhysicalType: ir.DataUnicode2String,
		Unit:         unitOf(def),
	}, nil
}

func (c *Converter) convertStruct(name string, def *model.TypeDefinition, opts Options) (*ir.DOP, error) {
	fields := make([]ir.Param, 0, len(def.Fields))
	bytePos := 0
	for i, f := range def.Fields {
		fieldDef, err := c.Resolve(f.Type, fieldPath(opts.Path, i))
		if err != nil {
			return nil, err
		}
		fieldDOP, err := c.convert(fmt.Sprintf("%s.%s", name, f.Name), fieldDef, Options{
			Path: fieldPath(opts.Path, i),
		})
		if err != nil {
			return nil, err
		}

		p := ir.Param{
			Name:         f.Name,
			Semantic:     "DATA",
			BytePosition: bytePos,
			Type:         ir.ParamValue,
			DOP:          fieldDOP,
		}

		if f.BitLength != nil {
			p.BitLength = *f.BitLength
			if f.BitPosition != nil {
				p.BitPosition = *f.BitPosition
			}
			// Bit fields share the current byte; the cursor advances
			// once a field reaches the byte's top bit.
			if p.BitPosition+p.BitLength >= 8 {
				bytePos += (p.BitPosition + p.BitLength + 7) / 8
			}
		} else {
			size, err := fieldByteSize(fieldDef, opts.Path)
			if err != nil {
				return nil, err
			}
			if size < 0 {
				if i != len(def.Fields)-1 {
					return nil, convErr(CodeNestedVariable, fieldPath(opts.Path, i),
						"variable-length field %q must be last in the struct", f.Name)
				}
				size = 0
			}
			bytePos += size
		}
		fields = append(fields, p)
	}

	return &ir.DOP{
		Name: name,
		CodedType: ir.CodedType{
			Name:         ir.StandardLengthType,
			BaseDataType: ir.DataByteField,
			BigEndian:    true,
		},
		PhysicalType: ir.DataByteField,
		StructFields: fields,
	}, nil
}

// codedType derives the wire layout of an atomic or table-backed type.
func codedType(def *model.TypeDefinition, opts Options) (*ir.CodedType, error) {
	if def.Base.IsVariableLength() {
		return variableCodedType(def, opts)
	}

	width := def.Base.BitWidth()
	if def.BitLength != nil {
		width = *def.BitLength
	}
	if width == 0 {
		return nil, convErr(CodeMissingLength, opts.Path, "type %q has no width", def.Base)
	}
	if width > 8 && def.Endian == "" {
		return nil, convErr(CodeMissingEndianness, opts.Path,
			"multi-byte type %q requires explicit endianness", def.Base)
	}

	ct := &ir.CodedType{
		Name:         ir.StandardLengthType,
		BaseDataType: baseDataType(def.Base),
		BitLength:    width,
		BigEndian:    def.Endian != model.LittleEndian,
	}
	if def.BitPosition != nil {
		ct.BitPosition = *def.BitPosition
	}
	return ct, nil
}

func variableCodedType(def *model.TypeDefinition, opts Options) (*ir.CodedType, error) {
	base := baseDataType(def.Base)

	if def.Length != nil {
		return &ir.CodedType{
			Name:         ir.StandardLengthType,
			BaseDataType: base,
			BitLength:    *def.Length * 8,
			BigEndian:    true,
		}, nil
	}

	if def.MinLength == nil || def.MaxLength == nil {
		return nil, convErr(CodeMissingLength, opts.Path,
			"variable-length %q needs length or min_length/max_length", def.Base)
	}

	switch def.Termination {
	case model.TermLengthField:
		if opts.LengthKeyRef == "" {
			return nil, convErr(CodeLengthFieldUnres, opts.Path,
				"length_field termination without a resolvable length parameter")
		}
		return &ir.CodedType{
			Name:         ir.ParamLengthInfoType,
			BaseDataType: base,
			MinLength:    *def.MinLength,
			MaxLength:    *def.MaxLength,
			BigEndian:    true,
			LengthKeyRef: opts.LengthKeyRef,
		}, nil
	case model.TermZero:
		return minMax(base, def, ir.TermZero), nil
	case model.TermEndOfPDU:
		return minMax(base, def, ir.TermEndOfPDU), nil
	case model.TermNone, "":
		return minMax(base, def, ir.TermNone), nil
	default:
		return nil, convErr(CodeMissingLength, opts.Path,
			"unknown termination policy %q", def.Termination)
	}
}

func minMax(base ir.DataType, def *model.TypeDefinition, term ir.Termination) *ir.CodedType {
	return &ir.CodedType{
		Name:         ir.MinMaxLengthType,
		BaseDataType: base,
		MinLength:    *def.MinLength,
		MaxLength:    *def.MaxLength,
		Termination:  term,
		BigEndian:    true,
	}
}

func linearMethod(def *model.TypeDefinition, path string) (*ir.CompuMethod, error) {
	scale := ir.CompuScale{Scale: 1, Divisor: 1}

	if def.Scale != nil {
		scale.Scale = *def.Scale
	}
	if def.Offset != nil {
		scale.Offset = *def.Offset
	}

	cm := &ir.CompuMethod{Category: ir.CompuLinear}

	if conv := def.Conversion; conv != nil {
		if conv.Scale != 0 {
			scale.Scale = conv.Scale
		}
		scale.Offset = conv.Offset
		if conv.Divisor != 0 {
			scale.Divisor = conv.Divisor
		}
		scale.Shift = conv.Shift
		if err := applyBounds(cm, conv, path); err != nil {
			return nil, err
		}
	}
	cm.Scales = []ir.CompuScale{scale}
	return cm, nil
}

func applyBounds(cm *ir.CompuMethod, conv *model.LinearConversion, path string) error {
	set := func(dst **float64, v float64) {
		val := v
		*dst = &val
	}
	switch len(conv.InternalConstraints) {
	case 0:
	case 2:
		set(&cm.InternalMin, conv.InternalConstraints[0])
		set(&cm.InternalMax, conv.InternalConstraints[1])
	default:
		return convErr(CodeBadConstraints, path, "internal_constraints needs exactly [min, max]")
	}
	switch len(conv.PhysicalConstraints) {
	case 0:
	case 2:
		set(&cm.PhysicalMin, conv.PhysicalConstraints[0])
		set(&cm.PhysicalMax, conv.PhysicalConstraints[1])
	default:
		return convErr(CodeBadConstraints, path, "physical_constraints needs exactly [min, max]")
	}
	return nil
}

func baseDataType(b model.BaseType) ir.DataType {
	switch b {
	case model.BaseI8, model.BaseI16, model.BaseI32, model.BaseI64:
		return ir.DataInt32
	case model.BaseF32:
		return ir.DataFloat32
	case model.BaseF64:
		return ir.DataFloat64
	case model.BaseASCII:
		return ir.DataASCIIString
	case model.BaseUTF8:
		return ir.DataUTF8String
	case model.BaseBytes:
		return ir.DataByteField
	default:
		return ir.DataUint32
	}
}

func unitOf(def *model.TypeDefinition) string {
	if def.Conversion != nil && def.Conversion.Unit != "" {
		return def.Conversion.Unit
	}
	return def.Unit
}

// fieldByteSize returns the byte size of a fixed-extent field, or -1
// for variable extents.
func fieldByteSize(def *model.TypeDefinition, path string) (int, error) {
	if def.Base == model.BaseStruct {
		if def.Size != nil {
			return *def.Size, nil
		}
		return -1, nil
	}
	if def.Base.IsVariableLength() {
		if def.Length != nil {
			return *def.Length, nil
		}
		return -1, nil
	}
	width := def.Base.BitWidth()
	if def.BitLength != nil {
		width = *def.BitLength
	}
	if width == 0 {
		return 0, convErr(CodeMissingLength, path, "field type %q has no width", def.Base)
	}
	return (width + 7) / 8, nil
}

func fieldPath(path string, i int) string {
	return fmt.Sprintf("%s.fields[%d]", path, i)
}
