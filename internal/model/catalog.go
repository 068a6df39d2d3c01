package model

// DID is a Data Identifier definition, keyed by its 16-bit address.
type DID struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description,omitempty"`
	Type        TypeRef `yaml:"type"`
	Access      string  `yaml:"access,omitempty"`

	Readable *bool `yaml:"readable,omitempty"`
	Writable *bool `yaml:"writable,omitempty"`
	Snapshot *bool `yaml:"snapshot,omitempty"`

	WriteConditions []WriteCondition  `yaml:"write_conditions,omitempty"`
	Audience        []string          `yaml:"audience,omitempty"`
	Comparams       map[string]string `yaml:"comparams,omitempty"`
}

// IsReadable reports whether a read service should be generated.
// DIDs default to readable.
func (d *DID) IsReadable() bool { return d.Readable == nil || *d.Readable }

// IsWritable reports whether a write service should be generated.
func (d *DID) IsWritable() bool { return d.Writable != nil && *d.Writable }

// WriteCondition adds a session or security requirement to writes only.
type WriteCondition struct {
	Session        string `yaml:"session,omitempty"`
	Security       string `yaml:"security,omitempty"`
	Authentication string `yaml:"authentication,omitempty"`
}

// RoutineOperation is one of the RoutineControl subfunctions.
type RoutineOperation string

const (
	RoutineStart  RoutineOperation = "start"
	RoutineStop   RoutineOperation = "stop"
	RoutineResult RoutineOperation = "result"
)

// Subfunction returns the UDS RoutineControl subfunction value.
func (op RoutineOperation) Subfunction() uint8 {
	switch op {
	case RoutineStart:
		return 0x01
	case RoutineStop:
		return 0x02
	case RoutineResult:
		return 0x03
	}
	return 0
}

// RoutineParam is a named, typed routine parameter.
type RoutineParam struct {
	Name        string  `yaml:"name"`
	Type        TypeRef `yaml:"type"`
	Description string  `yaml:"description,omitempty"`
}

// RoutineParameters declares the request/response shapes per operation.
type RoutineParameters struct {
	StartRequest   []RoutineParam `yaml:"start_request,omitempty"`
	StartResponse  []RoutineParam `yaml:"start_response,omitempty"`
	StopRequest    []RoutineParam `yaml:"stop_request,omitempty"`
	StopResponse   []RoutineParam `yaml:"stop_response,omitempty"`
	ResultRequest  []RoutineParam `yaml:"result_request,omitempty"`
	ResultResponse []RoutineParam `yaml:"result_response,omitempty"`
}

// Routine is a RoutineControl (0x31) routine keyed by its identifier.
type Routine struct {
	Name        string             `yaml:"name"`
	Description string             `yaml:"description,omitempty"`
	Access      string             `yaml:"access,omitempty"`
	Operations  []RoutineOperation `yaml:"operations"`
	Parameters  *RoutineParameters `yaml:"parameters,omitempty"`
	Audience    []string           `yaml:"audience,omitempty"`
	Comparams   map[string]string  `yaml:"comparams,omitempty"`
}

// DTCSnapshot describes one freeze-frame record.
type DTCSnapshot struct {
	RecordNumber HexInt   `yaml:"record_number"`
	Description  string   `yaml:"description,omitempty"`
	DIDs         []HexInt `yaml:"dids,omitempty"`
}

// DTCExtendedData describes one extended-data record.
type DTCExtendedData struct {
	RecordNumber HexInt  `yaml:"record_number"`
	Name         string  `yaml:"name,omitempty"`
	Type         TypeRef `yaml:"type,omitempty"`
}

// DTCConfig carries defaults merged into every DTC.
type DTCConfig struct {
	Snapshots    map[string]DTCSnapshot     `yaml:"snapshots,omitempty"`
	ExtendedData map[string]DTCExtendedData `yaml:"extended_data,omitempty"`
}

// DTC is a Diagnostic Trouble Code keyed by its 24-bit code.
type DTC struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`

	// Severity class 1-4; mapped to ISO 14229 severity bytes by the
	// transformer (1=0x00, 2=0x20, 3=0x40, 4=0x80).
	Severity       int `yaml:"severity,omitempty"`
	FunctionalUnit int `yaml:"functional_unit,omitempty"`

	Snapshots    []DTCSnapshot     `yaml:"snapshots,omitempty"`
	ExtendedData []DTCExtendedData `yaml:"extended_data,omitempty"`

	Audience []string `yaml:"audience,omitempty"`
}
