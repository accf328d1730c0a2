package models

// ResultStatus tags a dispatch outcome as success or failure.
type ResultStatus string

const (
	ResultStatusSuccess ResultStatus = "success"
	ResultStatusError   ResultStatus = "error"
)

// Result is the single outcome type for node dispatch. Handler errors,
// handler-reported error values and missing handlers all fold into the
// failed branch, so the engine has exactly one failure path.
type Result struct {
	Status ResultStatus   `json:"status"`
	Output map[string]any `json:"output,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// Failed reports whether the result carries a failure.
func (r Result) Failed() bool {
	return r.Status == ResultStatusError
}

// SuccessResult wraps a handler output in a successful result.
func SuccessResult(output map[string]any) Result {
	return Result{Status: ResultStatusSuccess, Output: output}
}

// ErrorResult builds a failed result with the given message.
func ErrorResult(message string) Result {
	return Result{Status: ResultStatusError, Error: message}
}

// Payload renders the result as a node execution output payload.
func (r Result) Payload() map[string]any {
	payload := map[string]any{"status": string(r.Status)}

	if r.Output != nil {
		payload["output"] = r.Output
	}

	if r.Error != "" {
		payload["error"] = r.Error
	}

	return payload
}
