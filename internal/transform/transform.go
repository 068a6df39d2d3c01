package transform

import (
	"fmt"

	"github.com/opensovd/mddc/internal/dopconv"
	"github.com/opensovd/mddc/internal/ir"
	"github.com/opensovd/mddc/internal/model"
)

// UDS service identifiers the transformer emits. Positive responses
// are the request SID plus 0x40.
const (
	sidSessionControl = 0x10
	sidEcuReset       = 0x11
	sidReadDID        = 0x22
	sidSecurityAccess = 0x27
	sidWriteDID       = 0x2E
	sidRoutineControl = 0x31

	positiveOffset = 0x40
)

// Policy selects how conversion failures are handled.
type Policy int

const (
	// SkipAndReport excludes the failing entry and continues.
	SkipAndReport Policy = iota
	// AbortOnFirst fails the whole variant on the first bad entry.
	AbortOnFirst
)

// Options configure one transformation run.
type Options struct {
	// VariantName labels the database; empty for the base document.
	VariantName string
	// Variants carries the pre-merge variant declarations so the
	// database can emit variant matching tables. May be nil.
	Variants *model.Variants
	// Identification resolves ident_ref matching entries. May be nil.
	Identification *model.Identification
	// Policy defaults to SkipAndReport.
	Policy Policy
}

// Transformer lowers one effective document into an IR database.
type Transformer struct {
	doc  *model.Document
	conv *dopconv.Converter
	opts Options

	db      *ir.Database
	cp      *comparamResolver
	skipped []Skipped
}

// New returns a transformer for one effective, audience-filtered
// document.
func New(doc *model.Document, opts Options) *Transformer {
	return &Transformer{
		doc:  doc,
		conv: dopconv.New(doc),
		opts: opts,
	}
}

// Build produces the IR database. Skipped entries are returned
// alongside; a non-nil error fails the whole variant.
func (t *Transformer) Build() (*ir.Database, []Skipped, error) {
	t.db = ir.NewDatabase(t.doc.Ecu.Name, t.doc.Meta.Revision)
	t.db.VariantName = t.opts.VariantName
	t.db.Author = t.doc.Meta.Author
	t.db.Description = t.doc.Meta.Description
	t.cp = newComparamResolver(t.doc.Comparams)

	for _, name := range model.SortedKeys(t.doc.Sessions) {
		t.db.Sessions[name] = uint32(t.doc.Sessions[name].ID)
	}
	for _, name := range model.SortedKeys(t.doc.Security) {
		t.db.SecurityLevels[name] = uint32(t.doc.Security[name].Level)
	}

	resolved, err := t.cp.resolveAll("comparams", nil, nil)
	if err != nil {
		return nil, nil, err
	}
	t.db.Comparams = resolved

	if err := t.buildDIDServices(); err != nil {
		return nil, t.skipped, err
	}
	if err := t.buildRoutineServices(); err != nil {
		return nil, t.skipped, err
	}
	if err := t.buildStandardServices(); err != nil {
		return nil, t.skipped, err
	}
	if err := t.buildCustomServices(); err != nil {
		return nil, t.skipped, err
	}
	if err := t.buildDTCs(); err != nil {
		return nil, t.skipped, err
	}
	t.buildVariants()

	return t.db, t.skipped, nil
}

// skip records an excluded entry, or converts it to a fatal error
// under AbortOnFirst.
func (t *Transformer) skip(kind, name, path string, err error) error {
	if t.opts.Policy == AbortOnFirst {
		return fmt.Errorf("%s %s: %w", kind, name, err)
	}
	t.skipped = append(t.skipped, Skipped{Kind: kind, Name: name, Path: path, Err: err})
	return nil
}

func (t *Transformer) buildDIDServices() error {
	for _, id := range model.SortedHexKeys(t.doc.DIDs) {
		did := t.doc.DIDs[id]
		path := fmt.Sprintf("dids.%s", id)

		dop, err := t.conv.DOP(did.Name, did.Type, dopconv.Options{Path: path + ".type"})
		if err != nil {
			if serr := t.skip("did", did.Name, path, err); serr != nil {
				return serr
			}
			continue
		}
		sessions, security, auth, err := t.accessOf(did.Access, path)
		if err != nil {
			if serr := t.skip("did", did.Name, path, err); serr != nil {
				return serr
			}
			continue
		}

		comparams, err := t.cp.resolveAll(path, nil, did.Comparams)
		if err != nil {
			return err
		}
		t.db.AddDOP(dop)

		if did.IsReadable() {
			svc := t.readService(did.Name, uint32(id), dop)
			svc.RequiredSessions = sessions
			svc.RequiredSecurity = security
			svc.RequiredAuth = auth
			svc.Comparams = flatten(comparams)
			t.db.AddService(svc)
			t.db.DIDReadServices[uint32(id)] = svc.Name
		}
		if did.IsWritable() {
			svc := t.writeService(did.Name, uint32(id), dop)
			svc.RequiredSessions = appendConditions(sessions, did.WriteConditions, func(c model.WriteCondition) string { return c.Session })
			svc.RequiredSecurity = appendConditions(security, did.WriteConditions, func(c model.WriteCondition) string { return c.Security })
			svc.RequiredAuth = appendConditions(auth, did.WriteConditions, func(c model.WriteCondition) string { return c.Authentication })
			svc.Comparams = flatten(comparams)
			t.db.AddService(svc)
			t.db.DIDWriteServices[uint32(id)] = svc.Name
		}
	}
	return nil
}

// readService lays out ReadDataByIdentifier: request [SID][DID16],
// positive response [SID+0x40][DID16][DATA...].
func (t *Transformer) readService(name string, did uint32, dop *ir.DOP) *ir.DiagService {
	svcName := name + "_Read"
	return &ir.DiagService{
		Name:      svcName,
		ServiceID: sidReadDID,
		Request: &ir.Request{
			Name: svcName + "_RQ",
			Params: []ir.Param{
				sidParam(sidReadDID),
				didParam(did, 1),
			},
		},
		PositiveResponse: &ir.Response{
			Name: svcName + "_PR",
			Params: []ir.Param{
				sidParam(sidReadDID + positiveOffset),
				didParam(did, 1),
				dataParam("DATA", 3, dop),
			},
		},
		Addressing: t.addressing(),
	}
}

// writeService lays out WriteDataByIdentifier: request
// [SID][DID16][DATA...], positive response [SID+0x40][DID16].
func (t *Transformer) writeService(name string, did uint32, dop *ir.DOP) *ir.DiagService {
	svcName := name + "_Write"
	return &ir.DiagService{
		Name:      svcName,
		ServiceID: sidWriteDID,
		Request: &ir.Request{
			Name: svcName + "_RQ",
			Params: []ir.Param{
				sidParam(sidWriteDID),
				didParam(did, 1),
				dataParam("DATA", 3, dop),
			},
		},
		PositiveResponse: &ir.Response{
			Name: svcName + "_PR",
			Params: []ir.Param{
				sidParam(sidWriteDID + positiveOffset),
				didParam(did, 1),
			},
		},
		Addressing: ir.AddrPhysical,
	}
}

func (t *Transformer) buildRoutineServices() error {
	for _, id := range model.SortedHexKeys(t.doc.Routines) {
		routine := t.doc.Routines[id]
		path := fmt.Sprintf("routines.%s", id)

		sessions, security, auth, err := t.accessOf(routine.Access, path)
		if err != nil {
			if serr := t.skip("routine", routine.Name, path, err); serr != nil {
				return serr
			}
			continue
		}
		comparams, err := t.cp.resolveAll(path, nil, routine.Comparams)
		if err != nil {
			return err
		}

		for _, op := range routine.Operations {
			svc, err := t.routineService(routine, uint32(id), op, path)
			if err != nil {
				if serr := t.skip("routine", routine.Name, path, err); serr != nil {
					return serr
				}
				continue
			}
			svc.RequiredSessions = sessions
			svc.RequiredSecurity = security
			svc.RequiredAuth = auth
			svc.Comparams = flatten(comparams)
			t.db.AddService(svc)
			t.db.RoutineServices[uint32(id)] = append(t.db.RoutineServices[uint32(id)], svc.Name)
		}
	}
	return nil
}

// routineService lays out RoutineControl: request
// [0x31][subfn][RID16][params...], positive response
// [0x71][subfn][RID16][params...].
func (t *Transformer) routineService(routine *model.Routine, rid uint32, op model.RoutineOperation, path string) (*ir.DiagService, error) {
	reqDecls, respDecls := routineParams(routine.Parameters, op)
	subfn := op.Subfunction()

	svcName := fmt.Sprintf("%s_%s", routine.Name, titleOp(op))

	reqParams := []ir.Param{
		sidParam(sidRoutineControl),
		subfnParam(subfn),
		ridParam(rid),
	}
	respParams := []ir.Param{
		sidParam(sidRoutineControl + positiveOffset),
		subfnParam(subfn),
		ridParam(rid),
	}

	var err error
	if reqParams, err = t.appendValueParams(reqParams, reqDecls, 4, path); err != nil {
		return nil, err
	}
	if respParams, err = t.appendValueParams(respParams, respDecls, 4, path); err != nil {
		return nil, err
	}

	return &ir.DiagService{
		Name:             svcName,
		ServiceID:        sidRoutineControl,
		Subfunction:      &subfn,
		Request:          &ir.Request{Name: svcName + "_RQ", Params: reqParams},
		PositiveResponse: &ir.Response{Name: svcName + "_PR", Params: respParams},
		Addressing:       ir.AddrPhysical,
	}, nil
}

// appendValueParams converts a declared parameter list into positioned
// value params starting at the given byte offset. A variable-length
// parameter must be last; its extent runs to the end of the PDU.
func (t *Transformer) appendValueParams(params []ir.Param, decls []model.RoutineParam, offset int, path string) ([]ir.Param, error) {
	pos := offset
	for i, decl := range decls {
		declPath := fmt.Sprintf("%s.parameters[%d]", path, i)
		dop, err := t.conv.DOP(decl.Name, decl.Type, dopconv.Options{Path: declPath})
		if err != nil {
			return nil, err
		}
		params = append(params, dataParam(decl.Name, pos, dop))
		size := dopByteSize(dop)
		if size < 0 {
			if i != len(decls)-1 {
				return nil, transErr(CodeBadParamOrder, declPath,
					"variable-length parameter %q must be last", decl.Name)
			}
			break
		}
		pos += size
	}
	return params, nil
}

// accessOf resolves a named access pattern into session, security, and
// authentication requirement lists. "any" and an absent pattern mean
// unrestricted.
func (t *Transformer) accessOf(pattern, path string) (sessions, security, auth []string, err error) {
	if pattern == "" {
		return nil, nil, nil, nil
	}
	p, ok := t.doc.AccessPatterns[pattern]
	if !ok {
		return nil, nil, nil, transErr(CodeUnknownPattern, path,
			"unknown access pattern %q", pattern)
	}
	return nameSetList(p.Sessions), nameSetList(p.Security), nameSetList(p.Authentication), nil
}

func nameSetList(s model.NameSet) []string {
	if s.IsAny() || s.IsNone() {
		return nil
	}
	return s.Names
}

func appendConditions(base []string, conds []model.WriteCondition, pick func(model.WriteCondition) string) []string {
	out := base
	for _, c := range conds {
		if v := pick(c); v != "" && !contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, e := range list {
		if e == v {
			return true
		}
	}
	return false
}

func (t *Transformer) addressing() ir.AddressingMode {
	switch t.doc.Ecu.DefaultAddressingMode {
	case "functional":
		return ir.AddrFunctional
	case "both":
		return ir.AddrBoth
	default:
		return ir.AddrPhysical
	}
}

func routineParams(p *model.RoutineParameters, op model.RoutineOperation) (req, resp []model.RoutineParam) {
	if p == nil {
		return nil, nil
	}
	switch op {
	case model.RoutineStart:
		return p.StartRequest, p.StartResponse
	case model.RoutineStop:
		return p.StopRequest, p.StopResponse
	case model.RoutineResult:
		return p.ResultRequest, p.ResultResponse
	}
	return nil, nil
}

func titleOp(op model.RoutineOperation) string {
	switch op {
	case model.RoutineStart:
		return "Start"
	case model.RoutineStop:
		return "Stop"
	case model.RoutineResult:
		return "Result"
	}
	return string(op)
}

// sidParam is the one-byte service identifier constant at byte 0.
func sidParam(sid uint32) ir.Param {
	return ir.Param{
		Name:         "SID",
		Semantic:     "SERVICE-ID",
		BytePosition: 0,
		Type:         ir.ParamCodedConst,
		CodedValue:   sid,
		BitLength:    8,
	}
}

// subfnParam is the one-byte subfunction constant at byte 1.
func subfnParam(subfn uint8) ir.Param {
	return ir.Param{
		Name:         "SubFunction",
		Semantic:     "SUBFUNCTION",
		BytePosition: 1,
		Type:         ir.ParamCodedConst,
		CodedValue:   uint32(subfn),
		BitLength:    8,
	}
}

// didParam is the 16-bit identifier constant at the given byte.
func didParam(did uint32, pos int) ir.Param {
	return ir.Param{
		Name:         "DID",
		Semantic:     "ID",
		BytePosition: pos,
		Type:         ir.ParamCodedConst,
		CodedValue:   did,
		BitLength:    16,
	}
}

// ridParam is the 16-bit routine identifier constant at byte 2.
func ridParam(rid uint32) ir.Param {
	return ir.Param{
		Name:         "RID",
		Semantic:     "ID",
		BytePosition: 2,
		Type:         ir.ParamCodedConst,
		CodedValue:   rid,
		BitLength:    16,
	}
}

// dataParam is a DOP-backed value parameter.
func dataParam(name string, pos int, dop *ir.DOP) ir.Param {
	return ir.Param{
		Name:         name,
		Semantic:     "DATA",
		BytePosition: pos,
		Type:         ir.ParamValue,
		DOP:          dop,
	}
}

// dopByteSize returns the fixed byte extent of a DOP or -1 when the
// extent is variable.
func dopByteSize(dop *ir.DOP) int {
	if dop.CodedType.Name == ir.StandardLengthType && dop.CodedType.BitLength > 0 {
		return (dop.CodedType.BitLength + 7) / 8
	}
	return -1
}
