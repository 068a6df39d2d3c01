package mdd

import (
	"fortio.org/safecast"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/opensovd/mddc/internal/ir"
)

// dopPool assigns each structurally distinct DOP one slot in the
// artifact. Repeated use across services serializes to the same slot,
// so the shared table graph carries every layout exactly once. The
// pool is scoped to one encode and must not outlive it.
type dopPool struct {
	index map[string]uint32
	order []*ir.DOP
}

func newDOPPool() *dopPool {
	return &dopPool{index: make(map[string]uint32)}
}

// add interns a DOP and returns its 1-based slot. Struct field DOPs
// are interned first so the pool reads bottom-up.
func (p *dopPool) add(dop *ir.DOP) (uint32, error) {
	for i := range dop.StructFields {
		if nested := dop.StructFields[i].DOP; nested != nil {
			if _, err := p.add(nested); err != nil {
				return 0, err
			}
		}
	}

	key, err := dop.StructuralKey()
	if err != nil {
		return 0, serErr(CodeBadBlob, "dop %q: %v", dop.Name, err)
	}
	if slot, ok := p.index[key]; ok {
		return slot, nil
	}

	p.order = append(p.order, dop)
	slot, err := safecast.Conv[uint32](len(p.order))
	if err != nil {
		return 0, serErr(CodeIndexOverflow, "dop pool: %v", err)
	}
	p.index[key] = slot
	return slot, nil
}

// Encode serializes a database into the diagnostic-description blob.
func Encode(db *ir.Database) ([]byte, error) {
	pool := newDOPPool()

	// Intern bottom-up: standalone DOPs, then everything services and
	// DTC records reference.
	for _, dop := range db.SortedDOPs() {
		if _, err := pool.add(dop); err != nil {
			return nil, err
		}
	}
	services := db.SortedServices()
	for _, svc := range services {
		for _, msg := range [][]ir.Param{paramsOf(svc.Request), respParamsOf(svc.PositiveResponse)} {
			for i := range msg {
				if msg[i].DOP != nil {
					if _, err := pool.add(msg[i].DOP); err != nil {
						return nil, err
					}
				}
			}
		}
	}
	for i := range db.DTCs {
		for j := range db.DTCs[i].ExtendedData {
			if dop := db.DTCs[i].ExtendedData[j].DOP; dop != nil {
				if _, err := pool.add(dop); err != nil {
					return nil, err
				}
			}
		}
	}

	var b []byte
	b = appendString(b, fDBEcuName, db.EcuName)
	b = appendString(b, fDBVariant, db.VariantName)
	b = appendString(b, fDBRevision, db.Revision)
	b = appendString(b, fDBAuthor, db.Author)
	b = appendString(b, fDBDesc, db.Description)

	for _, dop := range pool.order {
		msg, err := encodeDOP(dop, pool)
		if err != nil {
			return nil, err
		}
		b = appendMessage(b, fDBDOP, msg)
	}

	serviceIndex := make(map[string]uint32, len(services))
	for i, svc := range services {
		slot, err := safecast.Conv[uint32](i + 1)
		if err != nil {
			return nil, serErr(CodeIndexOverflow, "service table: %v", err)
		}
		serviceIndex[svc.Name] = slot
		msg, err := encodeService(svc, pool)
		if err != nil {
			return nil, err
		}
		b = appendMessage(b, fDBService, msg)
	}

	b = appendNamedIDs(b, fDBSession, db.Sessions)
	b = appendNamedIDs(b, fDBSecurity, db.SecurityLevels)

	var err error
	if b, err = appendServiceRefs(b, fDBDIDRead, db.DIDReadServices, serviceIndex); err != nil {
		return nil, err
	}
	if b, err = appendServiceRefs(b, fDBDIDWrite, db.DIDWriteServices, serviceIndex); err != nil {
		return nil, err
	}
	if b, err = appendRoutineRefs(b, db.RoutineServices, serviceIndex); err != nil {
		return nil, err
	}

	for i := range db.DTCs {
		msg, err := encodeDTC(&db.DTCs[i], pool)
		if err != nil {
			return nil, err
		}
		b = appendMessage(b, fDBDTC, msg)
	}
	for i := range db.Variants {
		b = appendMessage(b, fDBVariantE, encodeVariant(&db.Variants[i]))
	}
	for _, key := range sortedStringKeys(db.Comparams) {
		cv := db.Comparams[key]
		var msg []byte
		msg = appendString(msg, fNamedName, key)
		msg = appendString(msg, fNamedValue, cv.Value)
		msg = appendString(msg, fNamedLevel, cv.Level)
		b = appendMessage(b, fDBComparam, msg)
	}

	return b, nil
}

func encodeDOP(dop *ir.DOP, pool *dopPool) ([]byte, error) {
	var b []byte
	b = appendString(b, fDOPName, dop.Name)
	b = appendMessage(b, fDOPCoded, encodeCodedType(&dop.CodedType))
	if dop.CompuMethod != nil {
		b = appendMessage(b, fDOPCompu, encodeCompuMethod(dop.CompuMethod))
	}
	b = appendUint(b, fDOPPhysical, uint64(dop.PhysicalType))
	b = appendString(b, fDOPUnit, dop.Unit)
	for i := range dop.StructFields {
		msg, err := encodeParam(&dop.StructFields[i], pool)
		if err != nil {
			return nil, err
		}
		b = appendMessage(b, fDOPField, msg)
	}
	return b, nil
}

func encodeCodedType(ct *ir.CodedType) []byte {
	var b []byte
	b = appendUint(b, fCTName, uint64(ct.Name))
	b = appendUint(b, fCTBase, uint64(ct.BaseDataType))
	b = appendUint(b, fCTBitLen, uint64(ct.BitLength))
	b = appendUint(b, fCTBitPos, uint64(ct.BitPosition))
	b = appendBool(b, fCTBigEndian, ct.BigEndian)
	b = appendUint(b, fCTMinLen, uint64(ct.MinLength))
	b = appendUint(b, fCTMaxLen, uint64(ct.MaxLength))
	b = appendString(b, fCTTerm, string(ct.Termination))
	b = appendString(b, fCTLengthKey, ct.LengthKeyRef)
	return b
}

func encodeCompuMethod(cm *ir.CompuMethod) []byte {
	var b []byte
	b = appendUint(b, fCMCategory, uint64(cm.Category))
	for i := range cm.Scales {
		b = appendMessage(b, fCMScale, encodeCompuScale(&cm.Scales[i]))
	}
	b = appendString(b, fCMDefault, cm.DefaultText)
	if cm.InternalMin != nil {
		b = appendDoubleAlways(b, fCMIntMin, *cm.InternalMin)
	}
	if cm.InternalMax != nil {
		b = appendDoubleAlways(b, fCMIntMax, *cm.InternalMax)
	}
	if cm.PhysicalMin != nil {
		b = appendDoubleAlways(b, fCMPhysMin, *cm.PhysicalMin)
	}
	if cm.PhysicalMax != nil {
		b = appendDoubleAlways(b, fCMPhysMax, *cm.PhysicalMax)
	}
	return b
}

func encodeCompuScale(cs *ir.CompuScale) []byte {
	var b []byte
	if cs.LowerLimit != nil {
		b = appendDoubleAlways(b, fCSLower, *cs.LowerLimit)
	}
	if cs.UpperLimit != nil {
		b = appendDoubleAlways(b, fCSUpper, *cs.UpperLimit)
	}
	b = appendDouble(b, fCSScale, cs.Scale)
	b = appendDouble(b, fCSOffset, cs.Offset)
	b = appendDouble(b, fCSDivisor, cs.Divisor)
	b = appendDouble(b, fCSShift, cs.Shift)
	b = appendUint(b, fCSIntLow, uint64(cs.InternalLow))
	b = appendUint(b, fCSIntHigh, uint64(cs.InternalHigh))
	b = appendString(b, fCSText, cs.Text)
	return b
}

func encodeParam(p *ir.Param, pool *dopPool) ([]byte, error) {
	var b []byte
	b = appendString(b, fPName, p.Name)
	b = appendString(b, fPSemantic, p.Semantic)
	b = appendUint(b, fPBytePos, uint64(p.BytePosition))
	b = appendUint(b, fPBitPos, uint64(p.BitPosition))
	b = appendUint(b, fPType, uint64(p.Type))
	b = appendUint(b, fPCodedValue, uint64(p.CodedValue))
	b = appendUint(b, fPBitLen, uint64(p.BitLength))
	if p.CodedType != nil {
		b = appendMessage(b, fPCodedType, encodeCodedType(p.CodedType))
	}
	b = appendUint(b, fPReqBytePos, uint64(p.RequestBytePos))
	b = appendUint(b, fPByteLen, uint64(p.ByteLength))
	if p.DOP != nil {
		slot, err := pool.add(p.DOP)
		if err != nil {
			return nil, err
		}
		b = appendUint(b, fPDOPIndex, uint64(slot))
	}
	return b, nil
}

func encodeService(svc *ir.DiagService, pool *dopPool) ([]byte, error) {
	var b []byte
	b = appendString(b, fSvcName, svc.Name)
	b = appendUint(b, fSvcID, uint64(svc.ServiceID))
	if svc.Subfunction != nil {
		b = protowire.AppendTag(b, fSvcSubfn, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(*svc.Subfunction))
	}
	if svc.Request != nil {
		msg, err := encodeMessageLayout(svc.Request.Name, svc.Request.Params, svc.Request.ConstantPrefix, pool)
		if err != nil {
			return nil, err
		}
		b = appendMessage(b, fSvcRequest, msg)
	}
	if svc.PositiveResponse != nil {
		msg, err := encodeMessageLayout(svc.PositiveResponse.Name, svc.PositiveResponse.Params, svc.PositiveResponse.ConstantPrefix, pool)
		if err != nil {
			return nil, err
		}
		b = appendMessage(b, fSvcResponse, msg)
	}
	for _, s := range svc.RequiredSessions {
		b = appendString(b, fSvcSession, s)
	}
	for _, s := range svc.RequiredSecurity {
		b = appendString(b, fSvcSecurity, s)
	}
	for _, s := range svc.RequiredAuth {
		b = appendString(b, fSvcAuth, s)
	}
	b = appendString(b, fSvcAddr, string(svc.Addressing))
	for _, key := range sortedStringKeys(svc.Comparams) {
		var msg []byte
		msg = appendString(msg, fNamedName, key)
		msg = appendString(msg, fNamedValue, svc.Comparams[key])
		b = appendMessage(b, fSvcComparam, msg)
	}
	return b, nil
}

func encodeMessageLayout(name string, params []ir.Param, prefix []byte, pool *dopPool) ([]byte, error) {
	var b []byte
	b = appendString(b, fMsgName, name)
	for i := range params {
		msg, err := encodeParam(&params[i], pool)
		if err != nil {
			return nil, err
		}
		b = appendMessage(b, fMsgParam, msg)
	}
	if len(prefix) > 0 {
		b = protowire.AppendTag(b, fMsgPrefix, protowire.BytesType)
		b = protowire.AppendBytes(b, prefix)
	}
	return b, nil
}

func encodeDTC(dtc *ir.DTC, pool *dopPool) ([]byte, error) {
	var b []byte
	b = appendUint(b, fDTCCode, uint64(dtc.Code))
	b = appendString(b, fDTCName, dtc.Name)
	b = appendString(b, fDTCDesc, dtc.Description)
	b = appendUint(b, fDTCSeverity, uint64(dtc.Severity))
	b = appendUint(b, fDTCFuncUnit, uint64(dtc.FunctionalUnit))
	for i := range dtc.Snapshots {
		b = appendMessage(b, fDTCSnapshot, encodeSnapshot(&dtc.Snapshots[i]))
	}
	for i := range dtc.ExtendedData {
		msg, err := encodeExtended(&dtc.ExtendedData[i], pool)
		if err != nil {
			return nil, err
		}
		b = appendMessage(b, fDTCExtended, msg)
	}
	return b, nil
}

func encodeSnapshot(rec *ir.SnapshotRecord) []byte {
	var b []byte
	b = appendUint(b, fSnapNumber, uint64(rec.RecordNumber))
	b = appendString(b, fSnapDesc, rec.Description)
	for _, item := range rec.Items {
		var msg []byte
		msg = appendUint(msg, fItemDID, uint64(item.DID))
		msg = appendString(msg, fItemName, item.Name)
		msg = appendUint(msg, fItemBytePos, uint64(item.BytePosition))
		msg = appendUint(msg, fItemSize, uint64(item.ByteSize))
		b = appendMessage(b, fSnapItem, msg)
	}
	b = appendUint(b, fSnapTotal, uint64(rec.TotalSize))
	return b
}

func encodeExtended(rec *ir.ExtendedDataRecord, pool *dopPool) ([]byte, error) {
	var b []byte
	b = appendUint(b, fExtNumber, uint64(rec.RecordNumber))
	b = appendString(b, fExtName, rec.Name)
	if rec.DOP != nil {
		slot, err := pool.add(rec.DOP)
		if err != nil {
			return nil, err
		}
		b = appendUint(b, fExtDOPIndex, uint64(slot))
	}
	b = appendUint(b, fExtSize, uint64(rec.ByteSize))
	return b, nil
}

func encodeVariant(v *ir.Variant) []byte {
	var b []byte
	b = appendString(b, fVarName, v.Name)
	b = appendBool(b, fVarIsBase, v.IsBase)
	b = appendString(b, fVarParent, v.ParentRef)
	for _, mp := range v.MatchingParameters {
		var msg []byte
		msg = appendString(msg, fMatchExpected, mp.ExpectedValue)
		msg = appendString(msg, fMatchService, mp.DiagServiceRef)
		msg = appendString(msg, fMatchOutParam, mp.OutParamRef)
		msg = appendBool(msg, fMatchPhysical, mp.UsePhysicalAddressing)
		b = appendMessage(b, fVarMatch, msg)
	}
	return b
}

func appendNamedIDs(b []byte, num protowire.Number, table map[string]uint32) []byte {
	for _, name := range sortedStringKeys(table) {
		var msg []byte
		msg = appendString(msg, fNamedName, name)
		msg = appendUint(msg, fNamedValue, uint64(table[name]))
		b = appendMessage(b, num, msg)
	}
	return b
}

func appendServiceRefs(b []byte, num protowire.Number, table map[uint32]string, index map[string]uint32) ([]byte, error) {
	for _, id := range sortedUint32Keys(table) {
		slot, ok := index[table[id]]
		if !ok {
			return nil, serErr(CodeBadBlob, "service ref %q not in service table", table[id])
		}
		var msg []byte
		msg = appendUint(msg, fRefID, uint64(id))
		msg = appendUint(msg, fRefService, uint64(slot))
		b = appendMessage(b, num, msg)
	}
	return b, nil
}

func appendRoutineRefs(b []byte, table map[uint32][]string, index map[string]uint32) ([]byte, error) {
	for _, id := range sortedUint32Keys(table) {
		var msg []byte
		msg = appendUint(msg, fRefID, uint64(id))
		for _, name := range table[id] {
			slot, ok := index[name]
			if !ok {
				return nil, serErr(CodeBadBlob, "routine service %q not in service table", name)
			}
			msg = appendUint(msg, fRefService, uint64(slot))
		}
		b = appendMessage(b, fDBRoutine, msg)
	}
	return b, nil
}
