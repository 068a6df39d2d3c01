package transform

import (
	"fmt"

	"github.com/opensovd/mddc/internal/dopconv"
	"github.com/opensovd/mddc/internal/ir"
	"github.com/opensovd/mddc/internal/model"
)

// enabledOrAbsent treats a missing service block as enabled; authors
// opt out explicitly with enabled: false.
func enabledOrAbsent(cfg *model.ServiceConfig) bool {
	return cfg == nil || cfg.IsEnabled()
}

func (t *Transformer) serviceBlock(pick func(*model.Services) *model.ServiceConfig) *model.ServiceConfig {
	if t.doc.Services == nil {
		return nil
	}
	return pick(t.doc.Services)
}

// buildStandardServices generates DiagnosticSessionControl per
// declared session, SecurityAccess seed/key pairs per security level,
// and ECUReset per configured reset subfunction.
func (t *Transformer) buildStandardServices() error {
	dsc := t.serviceBlock(func(s *model.Services) *model.ServiceConfig { return s.DiagnosticSessionControl })
	if enabledOrAbsent(dsc) {
		if err := t.buildSessionControl(dsc); err != nil {
			return err
		}
	}

	sa := t.serviceBlock(func(s *model.Services) *model.ServiceConfig { return s.SecurityAccess })
	if enabledOrAbsent(sa) && len(t.doc.Security) > 0 {
		if err := t.buildSecurityAccess(sa); err != nil {
			return err
		}
	}

	reset := t.serviceBlock(func(s *model.Services) *model.ServiceConfig { return s.EcuReset })
	if reset.IsEnabled() {
		if err := t.buildEcuReset(reset); err != nil {
			return err
		}
	}
	return nil
}

func (t *Transformer) buildSessionControl(cfg *model.ServiceConfig) error {
	comparams, err := t.configComparams("services.diagnosticSessionControl", cfg)
	if err != nil {
		return err
	}
	for _, name := range model.SortedKeys(t.doc.Sessions) {
		session := t.doc.Sessions[name]
		subfn := uint8(session.ID)
		svcName := fmt.Sprintf("DiagnosticSessionControl_%s", name)

		t.db.AddService(&ir.DiagService{
			Name:        svcName,
			ServiceID:   sidSessionControl,
			Subfunction: &subfn,
			Request: &ir.Request{
				Name: svcName + "_RQ",
				Params: []ir.Param{
					sidParam(sidSessionControl),
					subfnParam(subfn),
				},
			},
			PositiveResponse: &ir.Response{
				Name: svcName + "_PR",
				Params: []ir.Param{
					sidParam(sidSessionControl + positiveOffset),
					subfnParam(subfn),
					// sessionParameterRecord: P2 and P2* server timing.
					timingParam("P2ServerMax", 2, 16),
					timingParam("P2StarServerMax", 4, 16),
				},
			},
			Addressing: ir.AddrBoth,
			Comparams:  comparams,
		})
	}
	return nil
}

// buildSecurityAccess emits a RequestSeed and SendKey pair per level.
// The seed subfunction is the declared odd level, the key is level+1.
func (t *Transformer) buildSecurityAccess(cfg *model.ServiceConfig) error {
	comparams, err := t.configComparams("services.securityAccess", cfg)
	if err != nil {
		return err
	}
	for _, name := range model.SortedKeys(t.doc.Security) {
		level := t.doc.Security[name]
		seedFn := uint8(level.Level)
		keyFn := seedFn + 1

		seedName := fmt.Sprintf("SecurityAccess_%s_RequestSeed", name)
		seedSize := level.SeedSize
		if seedSize == 0 {
			seedSize = 4
		}
		t.db.AddService(&ir.DiagService{
			Name:        seedName,
			ServiceID:   sidSecurityAccess,
			Subfunction: &seedFn,
			Request: &ir.Request{
				Name:   seedName + "_RQ",
				Params: []ir.Param{sidParam(sidSecurityAccess), subfnParam(seedFn)},
			},
			PositiveResponse: &ir.Response{
				Name: seedName + "_PR",
				Params: []ir.Param{
					sidParam(sidSecurityAccess + positiveOffset),
					subfnParam(seedFn),
					byteFieldParam("Seed", 2, seedSize),
				},
			},
			Addressing: ir.AddrPhysical,
			Comparams:  comparams,
		})

		keyName := fmt.Sprintf("SecurityAccess_%s_SendKey", name)
		keySize := level.KeySize
		if keySize == 0 {
			keySize = 4
		}
		t.db.AddService(&ir.DiagService{
			Name:        keyName,
			ServiceID:   sidSecurityAccess,
			Subfunction: &keyFn,
			Request: &ir.Request{
				Name: keyName + "_RQ",
				Params: []ir.Param{
					sidParam(sidSecurityAccess),
					subfnParam(keyFn),
					byteFieldParam("Key", 2, keySize),
				},
			},
			PositiveResponse: &ir.Response{
				Name:   keyName + "_PR",
				Params: []ir.Param{sidParam(sidSecurityAccess + positiveOffset), subfnParam(keyFn)},
			},
			Addressing: ir.AddrPhysical,
			Comparams:  comparams,
		})
	}
	return nil
}

func (t *Transformer) buildEcuReset(cfg *model.ServiceConfig) error {
	comparams, err := t.configComparams("services.ecuReset", cfg)
	if err != nil {
		return err
	}
	subfns := cfg.Subfunctions
	if len(subfns) == 0 {
		subfns = map[string]model.HexInt{"hardReset": 0x01}
	}
	for _, name := range model.SortedKeys(subfns) {
		subfn := uint8(subfns[name])
		svcName := fmt.Sprintf("EcuReset_%s", name)
		t.db.AddService(&ir.DiagService{
			Name:        svcName,
			ServiceID:   sidEcuReset,
			Subfunction: &subfn,
			Request: &ir.Request{
				Name:   svcName + "_RQ",
				Params: []ir.Param{sidParam(sidEcuReset), subfnParam(subfn)},
			},
			PositiveResponse: &ir.Response{
				Name:   svcName + "_PR",
				Params: []ir.Param{sidParam(sidEcuReset + positiveOffset), subfnParam(subfn)},
			},
			Addressing: ir.AddrPhysical,
			Comparams:  comparams,
		})
	}
	return nil
}

func (t *Transformer) buildCustomServices() error {
	if t.doc.Services == nil {
		return nil
	}
	for _, name := range model.SortedKeys(t.doc.Services.Custom) {
		svc := t.doc.Services.Custom[name]
		path := fmt.Sprintf("services.custom.%s", name)

		sessions, security, auth, err := t.accessOf(svc.Access, path)
		if err != nil {
			if serr := t.skip("service", name, path, err); serr != nil {
				return serr
			}
			continue
		}
		comparams, err := t.cp.resolveAll(path, svc.Comparams, nil)
		if err != nil {
			return err
		}

		reqParams := []ir.Param{sidParam(uint32(svc.ServiceID))}
		respParams := []ir.Param{sidParam(uint32(svc.ServiceID) + positiveOffset)}
		pos := 1
		if svc.Subfunction != nil {
			subfn := uint8(*svc.Subfunction)
			reqParams = append(reqParams, subfnParam(subfn))
			respParams = append(respParams, subfnParam(subfn))
			pos = 2
		}

		failed := false
		for i, decl := range svc.ResponseParams {
			declPath := fmt.Sprintf("%s.response_params[%d]", path, i)
			dop, err := t.conv.DOP(decl.ID, decl.Type, dopconv.Options{Path: declPath})
			if err != nil {
				if serr := t.skip("service", name, declPath, err); serr != nil {
					return serr
				}
				failed = true
				break
			}
			respParams = append(respParams, dataParam(decl.ID, pos, dop))
			size := dopByteSize(dop)
			if size < 0 {
				if i != len(svc.ResponseParams)-1 {
					if serr := t.skip("service", name, declPath, transErr(CodeBadParamOrder, declPath,
						"variable-length parameter %q must be last", decl.ID)); serr != nil {
						return serr
					}
					failed = true
				}
				break
			}
			pos += size
		}
		if failed {
			continue
		}

		diag := &ir.DiagService{
			Name:             name,
			ServiceID:        uint8(svc.ServiceID),
			Request:          &ir.Request{Name: name + "_RQ", Params: reqParams},
			PositiveResponse: &ir.Response{Name: name + "_PR", Params: respParams},
			RequiredSessions: sessions,
			RequiredSecurity: security,
			RequiredAuth:     auth,
			Addressing:       t.addressing(),
			Comparams:        flatten(comparams),
		}
		if svc.Subfunction != nil {
			subfn := uint8(*svc.Subfunction)
			diag.Subfunction = &subfn
		}
		t.db.AddService(diag)
	}
	return nil
}

func (t *Transformer) configComparams(path string, cfg *model.ServiceConfig) (map[string]string, error) {
	if cfg == nil {
		return nil, nil
	}
	resolved, err := t.cp.resolveAll(path, cfg.Comparams, nil)
	if err != nil {
		return nil, err
	}
	return flatten(resolved), nil
}

// timingParam is a fixed-width big-endian timing value.
func timingParam(name string, pos, bits int) ir.Param {
	return ir.Param{
		Name:         name,
		Semantic:     "DATA",
		BytePosition: pos,
		Type:         ir.ParamValue,
		DOP: &ir.DOP{
			Name: name,
			CodedType: ir.CodedType{
				Name:         ir.StandardLengthType,
				BaseDataType: ir.DataUint32,
				BitLength:    bits,
				BigEndian:    true,
			},
			CompuMethod:  &ir.CompuMethod{Category: ir.CompuIdentical},
			PhysicalType: ir.DataUint32,
			Unit:         "ms",
		},
	}
}

// byteFieldParam is a fixed-size opaque byte block.
func byteFieldParam(name string, pos, size int) ir.Param {
	return ir.Param{
		Name:         name,
		Semantic:     "DATA",
		BytePosition: pos,
		Type:         ir.ParamValue,
		DOP: &ir.DOP{
			Name: name,
			CodedType: ir.CodedType{
				Name:         ir.StandardLengthType,
				BaseDataType: ir.DataByteField,
				BitLength:    size * 8,
				BigEndian:    true,
			},
			CompuMethod:  &ir.CompuMethod{Category: ir.CompuIdentical},
			PhysicalType: ir.DataByteField,
		},
	}
}
