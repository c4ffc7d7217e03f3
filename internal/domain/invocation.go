package domain

import "encoding/json"

// FunctionInvocation is one resolved call against the data access catalog.
type FunctionInvocation struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
	// Index is the execution order assigned after normalization.
	Index int `json:"index"`
}

// CanonicalArgs renders the argument record with sorted keys so identical
// invocations always serialize identically.
func (inv FunctionInvocation) CanonicalArgs() string {
	if len(inv.Args) == 0 {
		return "{}"
	}
	// encoding/json sorts map keys.
	b, err := json.Marshal(inv.Args)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// FunctionError describes why one invocation failed.
type FunctionError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// FunctionResult is the outcome of one invocation. Failed invocations carry
// an error descriptor and never abort the batch.
type FunctionResult struct {
	Name  string          `json:"name"`
	Index int             `json:"index"`
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *FunctionError  `json:"error,omitempty"`
}
