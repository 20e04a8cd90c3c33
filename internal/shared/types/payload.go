package types

// StatusSuccess is the JSON wire protocol status for a successful command.
const StatusSuccess = 0

// Payload is the protocol response envelope.
type Payload struct {
	SessionID string        `json:"sessionId,omitempty"`
	Status    int           `json:"status"`
	Value     interface{}   `json:"value"`
	Confirm   *Confirmation `json:"confirm,omitempty"`
}

// ErrorValue is the value of a failed Payload.
type ErrorValue struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	Stacktrace string `json:"stacktrace,omitempty"`
}

// Capabilities is the free-form capability map negotiated at session creation.
type Capabilities map[string]interface{}

// NewSessionRequest is the body accepted by the new-session command.
type NewSessionRequest struct {
	DesiredCapabilities Capabilities `json:"desiredCapabilities"`
	Capabilities        struct {
		AlwaysMatch Capabilities `json:"alwaysMatch"`
	} `json:"capabilities"`
}

// Merged returns the W3C alwaysMatch capabilities layered over the legacy ones
func (r NewSessionRequest) Merged() Capabilities {
	caps := Capabilities{}
	for k, v := range r.DesiredCapabilities {
		caps[k] = v
	}
	for k, v := range r.Capabilities.AlwaysMatch {
		caps[k] = v
	}
	return caps
}

// NavigateRequest is the body of the url command.
type NavigateRequest struct {
	URL string `json:"url" binding:"required"`
}

// ExecuteRequest is the body of the execute command.
type ExecuteRequest struct {
	Script string        `json:"script" binding:"required"`
	Args   []interface{} `json:"args"`
}
