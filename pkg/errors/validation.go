package errors

import "fmt"

// ParameterErrorData contains structured data for argument errors
type ParameterErrorData struct {
	Parameter string      `json:"parameter"`
	Value     interface{} `json:"value,omitempty"`
	Reason    string      `json:"reason,omitempty"`
}

// InvalidArgument reports a caller-supplied value outside its domain
func InvalidArgument(param string, value interface{}, reason string) Error {
	return newCoded(CodeInvalidArgument,
		fmt.Sprintf("Invalid argument '%s': %s", param, reason),
	).WithData(&ParameterErrorData{Parameter: param, Value: value, Reason: reason})
}

// InvalidConfig reports an invalid configuration field
func InvalidConfig(field, reason string) Error {
	return newCoded(CodeInvalidConfig,
		fmt.Sprintf("Invalid configuration '%s': %s", field, reason),
	).WithData(&ParameterErrorData{Parameter: field, Reason: reason})
}
