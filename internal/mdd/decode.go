package mdd

import (
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/opensovd/mddc/internal/ir"
)

// Decode reconstructs a database from a diagnostic-description blob.
// DOP references resolve to shared instances: two params that
// serialized through the same pool slot decode to the same pointer.
func Decode(blob []byte) (*ir.Database, error) {
	d := &decoder{db: ir.NewDatabase("", "")}
	if err := d.run(blob); err != nil {
		return nil, err
	}
	return d.db, nil
}

type decoder struct {
	db       *ir.Database
	dops     []*ir.DOP
	services []*ir.DiagService

	// References recorded during the first pass and resolved once the
	// service table is complete.
	didRead  map[uint32]uint32
	didWrite map[uint32]uint32
	routines map[uint32][]uint32
}

type fieldHandler func(num protowire.Number, wtype protowire.Type, data []byte) error

// walk iterates one message's fields, dispatching payload bytes per
// field to the handler.
func walk(msg []byte, handle fieldHandler) error {
	for len(msg) > 0 {
		num, wtype, n := protowire.ConsumeTag(msg)
		if n < 0 {
			return serErr(CodeBadBlob, "malformed tag: %v", protowire.ParseError(n))
		}
		msg = msg[n:]

		var payload []byte
		switch wtype {
		case protowire.VarintType:
			_, n = protowire.ConsumeVarint(msg)
		case protowire.Fixed64Type:
			_, n = protowire.ConsumeFixed64(msg)
		case protowire.BytesType:
			payload, n = protowire.ConsumeBytes(msg)
		case protowire.Fixed32Type:
			_, n = protowire.ConsumeFixed32(msg)
		default:
			return serErr(CodeBadBlob, "unsupported wire type %d", wtype)
		}
		if n < 0 {
			return serErr(CodeBadBlob, "malformed field %d", num)
		}
		if payload == nil {
			payload = msg[:n]
		}
		if err := handle(num, wtype, payload); err != nil {
			return err
		}
		msg = msg[n:]
	}
	return nil
}

func asUint(data []byte) uint64 {
	v, _ := protowire.ConsumeVarint(data)
	return v
}

func asString(data []byte) string { return string(data) }

func asDouble(data []byte) float64 {
	v, _ := protowire.ConsumeFixed64(data)
	return math.Float64frombits(v)
}

func (d *decoder) run(blob []byte) error {
	d.didRead = make(map[uint32]uint32)
	d.didWrite = make(map[uint32]uint32)
	d.routines = make(map[uint32][]uint32)

	err := walk(blob, func(num protowire.Number, _ protowire.Type, data []byte) error {
		switch num {
		case fDBEcuName:
			d.db.EcuName = asString(data)
		case fDBVariant:
			d.db.VariantName = asString(data)
		case fDBRevision:
			d.db.Revision = asString(data)
		case fDBAuthor:
			d.db.Author = asString(data)
		case fDBDesc:
			d.db.Description = asString(data)
		case fDBDOP:
			dop, err := d.decodeDOP(data)
			if err != nil {
				return err
			}
			d.dops = append(d.dops, dop)
			d.db.AddDOP(dop)
		case fDBService:
			svc, err := d.decodeService(data)
			if err != nil {
				return err
			}
			d.services = append(d.services, svc)
			d.db.AddService(svc)
		case fDBSession:
			return decodeNamedID(data, d.db.Sessions)
		case fDBSecurity:
			return decodeNamedID(data, d.db.SecurityLevels)
		case fDBDIDRead:
			return decodeRef(data, d.didRead)
		case fDBDIDWrite:
			return decodeRef(data, d.didWrite)
		case fDBRoutine:
			return d.decodeRoutineRef(data)
		case fDBDTC:
			dtc, err := d.decodeDTC(data)
			if err != nil {
				return err
			}
			d.db.DTCs = append(d.db.DTCs, *dtc)
		case fDBVariantE:
			v, err := decodeVariant(data)
			if err != nil {
				return err
			}
			d.db.Variants = append(d.db.Variants, *v)
		case fDBComparam:
			return d.decodeComparam(data)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return d.resolveRefs()
}

func (d *decoder) resolveRefs() error {
	name := func(slot uint32) (string, error) {
		if slot == 0 || int(slot) > len(d.services) {
			return "", serErr(CodeBadBlob, "service slot %d out of range", slot)
		}
		return d.services[slot-1].Name, nil
	}
	for id, slot := range d.didRead {
		n, err := name(slot)
		if err != nil {
			return err
		}
		d.db.DIDReadServices[id] = n
	}
	for id, slot := range d.didWrite {
		n, err := name(slot)
		if err != nil {
			return err
		}
		d.db.DIDWriteServices[id] = n
	}
	for id, slots := range d.routines {
		for _, slot := range slots {
			n, err := name(slot)
			if err != nil {
				return err
			}
			d.db.RoutineServices[id] = append(d.db.RoutineServices[id], n)
		}
	}
	return nil
}

// dopAt resolves a 1-based pool slot to the shared decoded instance.
func (d *decoder) dopAt(slot uint64) (*ir.DOP, error) {
	if slot == 0 || slot > uint64(len(d.dops)) {
		return nil, serErr(CodeBadBlob, "dop slot %d out of range", slot)
	}
	return d.dops[slot-1], nil
}

func (d *decoder) decodeDOP(msg []byte) (*ir.DOP, error) {
	dop := &ir.DOP{}
	err := walk(msg, func(num protowire.Number, _ protowire.Type, data []byte) error {
		switch num {
		case fDOPName:
			dop.Name = asString(data)
		case fDOPCoded:
			ct, err := decodeCodedType(data)
			if err != nil {
				return err
			}
			dop.CodedType = *ct
		case fDOPCompu:
			cm, err := decodeCompuMethod(data)
			if err != nil {
				return err
			}
			dop.CompuMethod = cm
		case fDOPPhysical:
			dop.PhysicalType = ir.DataType(asUint(data))
		case fDOPUnit:
			dop.Unit = asString(data)
		case fDOPField:
			p, err := d.decodeParam(data)
			if err != nil {
				return err
			}
			dop.StructFields = append(dop.StructFields, *p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dop, nil
}

func decodeCodedType(msg []byte) (*ir.CodedType, error) {
	ct := &ir.CodedType{}
	err := walk(msg, func(num protowire.Number, _ protowire.Type, data []byte) error {
		switch num {
		case fCTName:
			ct.Name = ir.CodedTypeName(asUint(data))
		case fCTBase:
			ct.BaseDataType = ir.DataType(asUint(data))
		case fCTBitLen:
			ct.BitLength = int(asUint(data))
		case fCTBitPos:
			ct.BitPosition = int(asUint(data))
		case fCTBigEndian:
			ct.BigEndian = asUint(data) != 0
		case fCTMinLen:
			ct.MinLength = int(asUint(data))
		case fCTMaxLen:
			ct.MaxLength = int(asUint(data))
		case fCTTerm:
			ct.Termination = ir.Termination(asString(data))
		case fCTLengthKey:
			ct.LengthKeyRef = asString(data)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ct, nil
}

func decodeCompuMethod(msg []byte) (*ir.CompuMethod, error) {
	cm := &ir.CompuMethod{}
	err := walk(msg, func(num protowire.Number, _ protowire.Type, data []byte) error {
		switch num {
		case fCMCategory:
			cm.Category = ir.CompuCategory(asUint(data))
		case fCMScale:
			cs, err := decodeCompuScale(data)
			if err != nil {
				return err
			}
			cm.Scales = append(cm.Scales, *cs)
		case fCMDefault:
			cm.DefaultText = asString(data)
		case fCMIntMin:
			v := asDouble(data)
			cm.InternalMin = &v
		case fCMIntMax:
			v := asDouble(data)
			cm.InternalMax = &v
		case fCMPhysMin:
			v := asDouble(data)
			cm.PhysicalMin = &v
		case fCMPhysMax:
			v := asDouble(data)
			cm.PhysicalMax = &v
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cm, nil
}

func decodeCompuScale(msg []byte) (*ir.CompuScale, error) {
	cs := &ir.CompuScale{}
	err := walk(msg, func(num protowire.Number, _ protowire.Type, data []byte) error {
		switch num {
		case fCSLower:
			v := asDouble(data)
			cs.LowerLimit = &v
		case fCSUpper:
			v := asDouble(data)
			cs.UpperLimit = &v
		case fCSScale:
			cs.Scale = asDouble(data)
		case fCSOffset:
			cs.Offset = asDouble(data)
		case fCSDivisor:
			cs.Divisor = asDouble(data)
		case fCSShift:
			cs.Shift = asDouble(data)
		case fCSIntLow:
			cs.InternalLow = uint32(asUint(data))
		case fCSIntHigh:
			cs.InternalHigh = uint32(asUint(data))
		case fCSText:
			cs.Text = asString(data)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cs, nil
}

func (d *decoder) decodeParam(msg []byte) (*ir.Param, error) {
	p := &ir.Param{}
	err := walk(msg, func(num protowire.Number, _ protowire.Type, data []byte) error {
		switch num {
		case fPName:
			p.Name = asString(data)
		case fPSemantic:
			p.Semantic = asString(data)
		case fPBytePos:
			p.BytePosition = int(asUint(data))
		case fPBitPos:
			p.BitPosition = int(asUint(data))
		case fPType:
			p.Type = ir.ParamType(asUint(data))
		case fPCodedValue:
			p.CodedValue = uint32(asUint(data))
		case fPBitLen:
			p.BitLength = int(asUint(data))
		case fPCodedType:
			ct, err := decodeCodedType(data)
			if err != nil {
				return err
			}
			p.CodedType = ct
		case fPReqBytePos:
			p.RequestBytePos = int(asUint(data))
		case fPByteLen:
			p.ByteLength = int(asUint(data))
		case fPDOPIndex:
			dop, err := d.dopAt(asUint(data))
			if err != nil {
				return err
			}
			p.DOP = dop
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (d *decoder) decodeService(msg []byte) (*ir.DiagService, error) {
	svc := &ir.DiagService{}
	err := walk(msg, func(num protowire.Number, _ protowire.Type, data []byte) error {
		switch num {
		case fSvcName:
			svc.Name = asString(data)
		case fSvcID:
			svc.ServiceID = uint8(asUint(data))
		case fSvcSubfn:
			v := uint8(asUint(data))
			svc.Subfunction = &v
		case fSvcRequest:
			name, params, prefix, err := d.decodeMessageLayout(data)
			if err != nil {
				return err
			}
			svc.Request = &ir.Request{Name: name, Params: params, ConstantPrefix: prefix}
		case fSvcResponse:
			name, params, prefix, err := d.decodeMessageLayout(data)
			if err != nil {
				return err
			}
			svc.PositiveResponse = &ir.Response{Name: name, Params: params, ConstantPrefix: prefix}
		case fSvcSession:
			svc.RequiredSessions = append(svc.RequiredSessions, asString(data))
		case fSvcSecurity:
			svc.RequiredSecurity = append(svc.RequiredSecurity, asString(data))
		case fSvcAuth:
			svc.RequiredAuth = append(svc.RequiredAuth, asString(data))
		case fSvcAddr:
			svc.Addressing = ir.AddressingMode(asString(data))
		case fSvcComparam:
			var key, value string
			err := walk(data, func(n protowire.Number, _ protowire.Type, kv []byte) error {
				switch n {
				case fNamedName:
					key = asString(kv)
				case fNamedValue:
					value = asString(kv)
				}
				return nil
			})
			if err != nil {
				return err
			}
			if svc.Comparams == nil {
				svc.Comparams = make(map[string]string)
			}
			svc.Comparams[key] = value
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return svc, nil
}

func (d *decoder) decodeMessageLayout(msg []byte) (string, []ir.Param, []byte, error) {
	var (
		name   string
		params []ir.Param
		prefix []byte
	)
	err := walk(msg, func(num protowire.Number, _ protowire.Type, data []byte) error {
		switch num {
		case fMsgName:
			name = asString(data)
		case fMsgParam:
			p, err := d.decodeParam(data)
			if err != nil {
				return err
			}
			params = append(params, *p)
		case fMsgPrefix:
			prefix = append([]byte(nil), data...)
		}
		return nil
	})
	if err != nil {
		return "", nil, nil, err
	}
	return name, params, prefix, nil
}

func (d *decoder) decodeDTC(msg []byte) (*ir.DTC, error) {
	dtc := &ir.DTC{}
	err := walk(msg, func(num protowire.Number, _ protowire.Type, data []byte) error {
		switch num {
		case fDTCCode:
			dtc.Code = uint32(asUint(data))
		case fDTCName:
			dtc.Name = asString(data)
		case fDTCDesc:
			dtc.Description = asString(data)
		case fDTCSeverity:
			dtc.Severity = uint8(asUint(data))
		case fDTCFuncUnit:
			dtc.FunctionalUnit = uint8(asUint(data))
		case fDTCSnapshot:
			rec, err := decodeSnapshot(data)
			if err != nil {
				return err
			}
			dtc.Snapshots = append(dtc.Snapshots, *rec)
		case fDTCExtended:
			rec, err := d.decodeExtended(data)
			if err != nil {
				return err
			}
			dtc.ExtendedData = append(dtc.ExtendedData, *rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dtc, nil
}

func decodeSnapshot(msg []byte) (*ir.SnapshotRecord, error) {
	rec := &ir.SnapshotRecord{}
	err := walk(msg, func(num protowire.Number, _ protowire.Type, data []byte) error {
		switch num {
		case fSnapNumber:
			rec.RecordNumber = uint8(asUint(data))
		case fSnapDesc:
			rec.Description = asString(data)
		case fSnapItem:
			item := ir.SnapshotItem{}
			err := walk(data, func(n protowire.Number, _ protowire.Type, d []byte) error {
				switch n {
				case fItemDID:
					item.DID = uint32(asUint(d))
				case fItemName:
					item.Name = asString(d)
				case fItemBytePos:
					item.BytePosition = int(asUint(d))
				case fItemSize:
					item.ByteSize = int(asUint(d))
				}
				return nil
			})
			if err != nil {
				return err
			}
			rec.Items = append(rec.Items, item)
		case fSnapTotal:
			rec.TotalSize = int(asUint(data))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (d *decoder) decodeExtended(msg []byte) (*ir.ExtendedDataRecord, error) {
	rec := &ir.ExtendedDataRecord{}
	err := walk(msg, func(num protowire.Number, _ protowire.Type, data []byte) error {
		switch num {
		case fExtNumber:
			rec.RecordNumber = uint8(asUint(data))
		case fExtName:
			rec.Name = asString(data)
		case fExtDOPIndex:
			dop, err := d.dopAt(asUint(data))
			if err != nil {
				return err
			}
			rec.DOP = dop
		case fExtSize:
			rec.ByteSize = int(asUint(data))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func decodeVariant(msg []byte) (*ir.Variant, error) {
	v := &ir.Variant{}
	err := walk(msg, func(num protowire.Number, _ protowire.Type, data []byte) error {
		switch num {
		case fVarName:
			v.Name = asString(data)
		case fVarIsBase:
			v.IsBase = asUint(data) != 0
		case fVarParent:
			v.ParentRef = asString(data)
		case fVarMatch:
			mp := ir.MatchingParameter{}
			err := walk(data, func(n protowire.Number, _ protowire.Type, d []byte) error {
				switch n {
				case fMatchExpected:
					mp.ExpectedValue = asString(d)
				case fMatchService:
					mp.DiagServiceRef = asString(d)
				case fMatchOutParam:
					mp.OutParamRef = asString(d)
				case fMatchPhysical:
					mp.UsePhysicalAddressing = asUint(d) != 0
				}
				return nil
			})
			if err != nil {
				return err
			}
			v.MatchingParameters = append(v.MatchingParameters, mp)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (d *decoder) decodeComparam(msg []byte) error {
	var key string
	cv := ir.ComparamValue{}
	err := walk(msg, func(num protowire.Number, _ protowire.Type, data []byte) error {
		switch num {
		case fNamedName:
			key = asString(data)
		case fNamedValue:
			cv.Value = asString(data)
		case fNamedLevel:
			cv.Level = asString(data)
		}
		return nil
	})
	if err != nil {
		return err
	}
	d.db.Comparams[key] = cv
	return nil
}

func decodeNamedID(msg []byte, table map[string]uint32) error {
	var (
		name string
		id   uint32
	)
	err := walk(msg, func(num protowire.Number, _ protowire.Type, data []byte) error {
		switch num {
		case fNamedName:
			name = asString(data)
		case fNamedValue:
			id = uint32(asUint(data))
		}
		return nil
	})
	if err != nil {
		return err
	}
	table[name] = id
	return nil
}

func decodeRef(msg []byte, table map[uint32]uint32) error {
	var id, slot uint32
	err := walk(msg, func(num protowire.Number, _ protowire.Type, data []byte) error {
		switch num {
		case fRefID:
			id = uint32(asUint(data))
		case fRefService:
			slot = uint32(asUint(data))
		}
		return nil
	})
	if err != nil {
		return err
	}
	table[id] = slot
	return nil
}

func (d *decoder) decodeRoutineRef(msg []byte) error {
	var (
		id    uint32
		slots []uint32
	)
	err := walk(msg, func(num protowire.Number, _ protowire.Type, data []byte) error {
		switch num {
		case fRefID:
			id = uint32(asUint(data))
		case fRefService:
			slots = append(slots, uint32(asUint(data)))
		}
		return nil
	})
	if err != nil {
		return err
	}
	d.routines[id] = slots
	return nil
}
