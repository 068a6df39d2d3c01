package model

// SchemaVersion is the only schema identifier this compiler accepts.
const SchemaVersion = "opensovd.cda.diagdesc/v1"

// Document is the root of a diagnostic description. Exactly one Document
// exists per compile; it owns every top-level map.
type Document struct {
	Schema string `yaml:"schema"`
	Meta   Meta   `yaml:"meta"`
	Ecu    Ecu    `yaml:"ecu"`

	Sessions       map[string]Session       `yaml:"sessions"`
	Security       map[string]SecurityLevel `yaml:"security,omitempty"`
	Authentication map[string]AuthRole      `yaml:"authentication,omitempty"`
	AccessPatterns map[string]AccessPattern `yaml:"access_patterns,omitempty"`

	Types    map[string]*TypeDefinition `yaml:"types,omitempty"`
	DIDs     map[HexInt]*DID            `yaml:"dids,omitempty"`
	Routines map[HexInt]*Routine        `yaml:"routines,omitempty"`

	DTCConfig *DTCConfig      `yaml:"dtc_config,omitempty"`
	DTCs      map[HexInt]*DTC `yaml:"dtcs,omitempty"`

	Services *Services `yaml:"services,omitempty"`

	Variants       *Variants       `yaml:"variants,omitempty"`
	Identification *Identification `yaml:"identification,omitempty"`
	Comparams      *Comparams      `yaml:"comparams,omitempty"`
	Audience       *AudienceConfig `yaml:"audience,omitempty"`
}

// Meta is the document metadata block.
type Meta struct {
	Author      string `yaml:"author,omitempty"`
	Revision    string `yaml:"revision"`
	Description string `yaml:"description,omitempty"`
	Domain      string `yaml:"domain,omitempty"`
}

// Ecu identifies the control unit the description targets.
type Ecu struct {
	ID                    string `yaml:"id"`
	Name                  string `yaml:"name"`
	DefaultAddressingMode string `yaml:"default_addressing_mode,omitempty"`
}

// Session is a named diagnostic session with its UDS subfunction id.
type Session struct {
	ID          HexInt `yaml:"id"`
	Alias       string `yaml:"alias,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// SecurityLevel is a named SecurityAccess level. Level is the odd
// requestSeed subfunction value; sendKey is level+1 by UDS convention.
type SecurityLevel struct {
	Level       HexInt `yaml:"level"`
	Description string `yaml:"description,omitempty"`
	SeedSize    int    `yaml:"seed_size,omitempty"`
	KeySize     int    `yaml:"key_size,omitempty"`
}

// AuthRole is a named authentication role referenced by access patterns.
type AuthRole struct {
	Description string `yaml:"description,omitempty"`
}

// AccessPattern is a reusable access requirement: which sessions allow
// an operation, which security levels unlock it, and which
// authentication roles it demands.
type AccessPattern struct {
	Sessions       NameSet `yaml:"sessions"`
	Security       NameSet `yaml:"security"`
	Authentication NameSet `yaml:"authentication"`
	NrcOnFail      *HexInt `yaml:"nrc_on_fail,omitempty"`
}

// AudienceConfig declares the audience tags a document knows about.
type AudienceConfig struct {
	Default   string   `yaml:"default,omitempty"`
	Available []string `yaml:"available,omitempty"`
}
