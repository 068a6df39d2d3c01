package mdd

import (
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the database blob. Frozen; append only.
const (
	fDBEcuName  = 1
	fDBVariant  = 2
	fDBRevision = 3
	fDBAuthor   = 4
	fDBDesc     = 5
	fDBDOP      = 6
	fDBService  = 7
	fDBSession  = 8
	fDBSecurity = 9
	fDBDIDRead  = 10
	fDBDIDWrite = 11
	fDBRoutine  = 12
	fDBDTC      = 13
	fDBVariantE = 14
	fDBComparam = 15

	fNamedName  = 1
	fNamedValue = 2
	fNamedLevel = 3

	fRefID      = 1
	fRefService = 2

	fDOPName     = 1
	fDOPCoded    = 2
	fDOPCompu    = 3
	fDOPPhysical = 4
	fDOPUnit     = 5
	fDOPField    = 6

	fCTName      = 1
	fCTBase      = 2
	fCTBitLen    = 3
	fCTBitPos    = 4
	fCTBigEndian = 5
	fCTMinLen    = 6
	fCTMaxLen    = 7
	fCTTerm      = 8
	fCTLengthKey = 9

	fCMCategory = 1
	fCMScale    = 2
	fCMDefault  = 3
	fCMIntMin   = 4
	fCMIntMax   = 5
	fCMPhysMin  = 6
	fCMPhysMax  = 7

	fCSLower   = 1
	fCSUpper   = 2
	fCSScale   = 3
	fCSOffset  = 4
	fCSDivisor = 5
	fCSShift   = 6
	fCSIntLow  = 7
	fCSIntHigh = 8
	fCSText    = 9

	fPName       = 1
	fPSemantic   = 2
	fPBytePos    = 3
	fPBitPos     = 4
	fPType       = 5
	fPCodedValue = 6
	fPBitLen     = 7
	fPCodedType  = 8
	fPReqBytePos = 9
	fPByteLen    = 10
	fPDOPIndex   = 11

	fMsgName   = 1
	fMsgParam  = 2
	fMsgPrefix = 3

	fSvcName     = 1
	fSvcID       = 2
	fSvcSubfn    = 3
	fSvcRequest  = 4
	fSvcResponse = 5
	fSvcSession  = 6
	fSvcSecurity = 7
	fSvcAuth     = 8
	fSvcAddr     = 9
	fSvcComparam = 10

	fDTCCode     = 1
	fDTCName     = 2
	fDTCDesc     = 3
	fDTCSeverity = 4
	fDTCFuncUnit = 5
	fDTCSnapshot = 6
	fDTCExtended = 7

	fSnapNumber = 1
	fSnapDesc   = 2
	fSnapItem   = 3
	fSnapTotal  = 4

	fItemDID     = 1
	fItemName    = 2
	fItemBytePos = 3
	fItemSize    = 4

	fExtNumber   = 1
	fExtName     = 2
	fExtDOPIndex = 3
	fExtSize     = 4

	fVarName   = 1
	fVarIsBase = 2
	fVarParent = 3
	fVarMatch  = 4

	fMatchExpected = 1
	fMatchService  = 2
	fMatchOutParam = 3
	fMatchPhysical = 4
)

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendUint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, 1)
}

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

// appendDoubleAlways encodes the field even for zero, for values whose
// presence matters.
func appendDoubleAlways(b []byte, num protowire.Number, v float64) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}
