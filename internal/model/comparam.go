package model

// ComparamLevel names one layer of the comparam override chain, from
// most to least specific: service, did/routine entry, variant, ecu,
// protocol, global.
type ComparamLevel string

const (
	LevelService  ComparamLevel = "service"
	LevelEntry    ComparamLevel = "entry"
	LevelVariant  ComparamLevel = "variant"
	LevelEcu      ComparamLevel = "ecu"
	LevelProtocol ComparamLevel = "protocol"
	LevelGlobal   ComparamLevel = "global"
)

// ComparamDef declares a communication parameter: whether it must
// resolve somewhere on the chain and what it falls back to otherwise.
type ComparamDef struct {
	Description string `yaml:"description,omitempty"`
	Required    bool   `yaml:"required,omitempty"`
	Default     string `yaml:"default,omitempty"`
}

// Comparams is the document's communication parameter section. The
// per-level maps hold key -> value overrides; finer-grained overrides
// live on services, DIDs, and routines.
type Comparams struct {
	Definitions map[string]ComparamDef `yaml:"definitions,omitempty"`

	Global   map[string]string `yaml:"global,omitempty"`
	Protocol map[string]string `yaml:"protocol,omitempty"`
	Ecu      map[string]string `yaml:"ecu,omitempty"`
	Variant  map[string]string `yaml:"variant,omitempty"`
}
