package model

// ServiceConfig is the shared enable/subfunction shape of a standard
// UDS service block.
type ServiceConfig struct {
	Enabled      *bool             `yaml:"enabled,omitempty"`
	Subfunctions map[string]HexInt `yaml:"subfunctions,omitempty"`
	Access       string            `yaml:"access,omitempty"`
	Audience     []string          `yaml:"audience,omitempty"`
	Comparams    map[string]string `yaml:"comparams,omitempty"`
}

// IsEnabled reports whether the service block is active. Blocks default
// to enabled when present.
func (c *ServiceConfig) IsEnabled() bool {
	return c != nil && (c.Enabled == nil || *c.Enabled)
}

// ResponseParamDecl declares one named parameter of a custom service
// response, resolvable by identification checks.
type ResponseParamDecl struct {
	ID   string  `yaml:"id"`
	Type TypeRef `yaml:"type"`
}

// CustomService is an authored service with an explicit request id and
// declared response parameters.
type CustomService struct {
	ServiceID      HexInt              `yaml:"service_id"`
	Subfunction    *HexInt             `yaml:"subfunction,omitempty"`
	Description    string              `yaml:"description,omitempty"`
	Access         string              `yaml:"access,omitempty"`
	ResponseParams []ResponseParamDecl `yaml:"response_params,omitempty"`
	Audience       []string            `yaml:"audience,omitempty"`
	Comparams      map[string]string   `yaml:"comparams,omitempty"`
}

// Services is the document's service configuration section. The
// standard UDS services are individually toggled; anything else lives
// under Custom.
type Services struct {
	DiagnosticSessionControl *ServiceConfig `yaml:"diagnosticSessionControl,omitempty"`
	SecurityAccess           *ServiceConfig `yaml:"securityAccess,omitempty"`
	EcuReset                 *ServiceConfig `yaml:"ecuReset,omitempty"`

	Custom map[string]*CustomService `yaml:"custom,omitempty"`
}
