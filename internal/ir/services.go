package ir

// ParamType tags the specific behavior of a request/response parameter.
type ParamType int

const (
	ParamNone ParamType = iota
	ParamCodedConst
	ParamMatchingRequest
	ParamValue
	ParamReserved
)

func (p ParamType) String() string {
	switch p {
	case ParamCodedConst:
		return "CODED-CONST"
	case ParamMatchingRequest:
		return "MATCHING-REQUEST-PARAM"
	case ParamValue:
		return "VALUE"
	case ParamReserved:
		return "RESERVED"
	}
	return "NONE"
}

// Param is one positioned parameter of a request or response.
type Param struct {
	Name     string `json:"name"`
	Semantic string `json:"semantic,omitempty"`

	BytePosition int `json:"byte_position"`
	BitPosition  int `json:"bit_position,omitempty"`

	Type ParamType `json:"type"`

	// CodedConst.
	CodedValue uint32     `json:"coded_value,omitempty"`
	BitLength  int        `json:"bit_length,omitempty"`
	CodedType  *CodedType `json:"coded_type,omitempty"`

	// MatchingRequestParam.
	RequestBytePos int `json:"request_byte_pos,omitempty"`
	ByteLength     int `json:"byte_length,omitempty"`

	// Value: the DOP describing the payload.
	DOP *DOP `json:"dop,omitempty"`
}

// Request is a service request message layout.
type Request struct {
	Name           string  `json:"name"`
	Params         []Param `json:"params"`
	ConstantPrefix []byte  `json:"constant_prefix,omitempty"`
}

// Response is a service response message layout.
type Response struct {
	Name           string  `json:"name"`
	Params         []Param `json:"params"`
	ConstantPrefix []byte  `json:"constant_prefix,omitempty"`
}

// AddressingMode selects physical, functional, or both addressing.
type AddressingMode string

const (
	AddrPhysical   AddressingMode = "physical"
	AddrFunctional AddressingMode = "functional"
	AddrBoth       AddressingMode = "both"
)

// DiagService is one compiled diagnostic service.
type DiagService struct {
	Name        string `json:"name"`
	ServiceID   uint8  `json:"service_id"`
	Subfunction *uint8 `json:"subfunction,omitempty"`

	Request          *Request  `json:"request,omitempty"`
	PositiveResponse *Response `json:"positive_response,omitempty"`

	RequiredSessions []string `json:"required_sessions,omitempty"`
	RequiredSecurity []string `json:"required_security,omitempty"`
	RequiredAuth     []string `json:"required_auth,omitempty"`

	Addressing AddressingMode `json:"addressing"`

	// Comparams holds the per-service resolved communication
	// parameters (key -> value with its winning level recorded by the
	// transformer's report).
	Comparams map[string]string `json:"comparams,omitempty"`
}
