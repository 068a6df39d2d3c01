package ir

import "sort"

// SnapshotItem is one DID captured in a freeze-frame record.
type SnapshotItem struct {
	DID          uint32 `json:"did"`
	Name         string `json:"name"`
	BytePosition int    `json:"byte_position"`
	ByteSize     int    `json:"byte_size"`
}

// SnapshotRecord is one freeze-frame record of a DTC.
type SnapshotRecord struct {
	RecordNumber uint8          `json:"record_number"`
	Description  string         `json:"description,omitempty"`
	Items        []SnapshotItem `json:"items"`
	TotalSize    int            `json:"total_size"`
}

// ExtendedDataRecord is one extended-data record of a DTC.
type ExtendedDataRecord struct {
	RecordNumber uint8  `json:"record_number"`
	Name         string `json:"name"`
	DOP          *DOP   `json:"dop,omitempty"`
	ByteSize     int    `json:"byte_size"`
}

// DTC is one compiled trouble-code catalog entry.
type DTC struct {
	Code           uint32               `json:"code"`
	Name           string               `json:"name"`
	Description    string               `json:"description,omitempty"`
	Severity       uint8                `json:"severity"`
	FunctionalUnit uint8                `json:"functional_unit"`
	Snapshots      []SnapshotRecord     `json:"snapshots,omitempty"`
	ExtendedData   []ExtendedDataRecord `json:"extended_data,omitempty"`
}

// MatchingParameter identifies a variant from a service response.
type MatchingParameter struct {
	ExpectedValue         string `json:"expected_value"`
	DiagServiceRef        string `json:"diag_service_ref"`
	OutParamRef           string `json:"out_param_ref,omitempty"`
	UsePhysicalAddressing bool   `json:"use_physical_addressing"`
}

// Variant is one compiled ECU variant entry.
type Variant struct {
	Name               string              `json:"name"`
	IsBase             bool                `json:"is_base"`
	MatchingParameters []MatchingParameter `json:"matching_parameters,omitempty"`
	ParentRef          string              `json:"parent_ref,omitempty"`
}

// ComparamValue is one resolved communication parameter together with
// the override level that supplied it.
type ComparamValue struct {
	Value string `json:"value"`
	Level string `json:"level"`
}

// Database is the IR root: every map the serializer walks, with
// deterministic sorted accessors. It is built once per
// (variant, audience) compile and discarded after serialization.
type Database struct {
	EcuName     string `json:"ecu_name"`
	VariantName string `json:"variant_name,omitempty"`
	Revision    string `json:"revision"`
	Author      string `json:"author,omitempty"`
	Description string `json:"description,omitempty"`

	DOPs     map[string]*DOP         `json:"dops"`
	Services map[string]*DiagService `json:"services"`

	Sessions       map[string]uint32 `json:"sessions"`
	SecurityLevels map[string]uint32 `json:"security_levels"`

	DIDReadServices  map[uint32]string   `json:"did_read_services"`
	DIDWriteServices map[uint32]string   `json:"did_write_services"`
	RoutineServices  map[uint32][]string `json:"routine_services"`

	DTCs     []DTC     `json:"dtcs,omitempty"`
	Variants []Variant `json:"variants,omitempty"`

	Comparams map[string]ComparamValue `json:"comparams,omitempty"`
}

// NewDatabase returns an empty database with all maps allocated.
func NewDatabase(ecuName, revision string) *Database {
	return &Database{
		EcuName:          ecuName,
		Revision:         revision,
		DOPs:             make(map[string]*DOP),
		Services:         make(map[string]*DiagService),
		Sessions:         make(map[string]uint32),
		SecurityLevels:   make(map[string]uint32),
		DIDReadServices:  make(map[uint32]string),
		DIDWriteServices: make(map[uint32]string),
		RoutineServices:  make(map[uint32][]string),
		Comparams:        make(map[string]ComparamValue),
	}
}

// AddDOP registers a DOP under its name.
func (db *Database) AddDOP(dop *DOP) { db.DOPs[dop.Name] = dop }

// AddService registers a service under its name.
func (db *Database) AddService(s *DiagService) { db.Services[s.Name] = s }

// SortedDOPs returns the DOPs ordered by name. Serialization walks
// this, never the map, so artifacts are byte-reproducible.
func (db *Database) SortedDOPs() []*DOP {
	names := make([]string, 0, len(db.DOPs))
	for name := range db.DOPs {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*DOP, len(names))
	for i, name := range names {
		out[i] = db.DOPs[name]
	}
	return out
}

// SortedServices returns the services ordered by name.
func (db *Database) SortedServices() []*DiagService {
	names := make([]string, 0, len(db.Services))
	for name := range db.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*DiagService, len(names))
	for i, name := range names {
		out[i] = db.Services[name]
	}
	return out
}
