package errors

import (
	"encoding/json"
)

// ToolResult is the structured shape the ToolSurface reports on failure:
// an error kind plus a human message, never a panic or a bare Go error string.
type ToolResult struct {
	ErrorKind string `json:"error_kind"`
	Message   string `json:"message"`
}

// ForToolSurface converts any error into a ToolResult. A CodelensError
// reports its own Kind; any other error is reported under StoreError, the
// closest fit for "something failed internally that the caller didn't
// anticipate".
func ForToolSurface(err error) ToolResult {
	if err == nil {
		return ToolResult{}
	}
	ce, ok := err.(*CodelensError)
	if !ok {
		return ToolResult{ErrorKind: string(KindStoreError), Message: err.Error()}
	}
	return ToolResult{ErrorKind: string(ce.Kind), Message: ce.Message}
}

// FormatForCLI formats an error for terminal display.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}
	ce, ok := err.(*CodelensError)
	if !ok {
		return "Error: " + err.Error()
	}
	if ce.Cause != nil {
		return "Error [" + string(ce.Kind) + "]: " + ce.Message + "\n  caused by: " + ce.Cause.Error()
	}
	return "Error [" + string(ce.Kind) + "]: " + ce.Message
}

// jsonError is the JSON representation of a CodelensError.
type jsonError struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Cause     string `json:"cause,omitempty"`
	Retryable bool   `json:"retryable"`
}

// FormatJSON returns a JSON representation of the error, suitable for
// structured logging or a machine-readable CLI exit payload.
func FormatJSON(err error) ([]byte, error) {
	if err == nil {
		return json.Marshal(nil)
	}
	ce, ok := err.(*CodelensError)
	if !ok {
		ce = New(KindStoreError, err.Error(), nil)
	}
	je := jsonError{
		Kind:      string(ce.Kind),
		Message:   ce.Message,
		Retryable: ce.Retryable,
	}
	if ce.Cause != nil {
		je.Cause = ce.Cause.Error()
	}
	return json.Marshal(je)
}

// FormatForLog returns key-value pairs suitable for slog attributes.
func FormatForLog(err error) map[string]any {
	if err == nil {
		return nil
	}
	ce, ok := err.(*CodelensError)
	if !ok {
		return map[string]any{"error": err.Error()}
	}
	result := map[string]any{
		"error_kind": string(ce.Kind),
		"message":    ce.Message,
		"retryable":  ce.Retryable,
	}
	if ce.Cause != nil {
		result["cause"] = ce.Cause.Error()
	}
	return result
}
