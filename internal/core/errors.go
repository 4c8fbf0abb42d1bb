package core

import "fmt"

// Error codes carried by CoreError and ControllerError
const (
	CodeInvalidTimezone  = "INVALID_TIMEZONE"
	CodeInvalidDirectory = "INVALID_DIRECTORY"
	CodeNoDispatcher     = "NO_DISPATCHER"
	CodeBootload         = "BOOTLOAD"

	CodeNotFound    = "NOT_FOUND"
	CodeBadAction   = "BAD_ACTION"
	CodeBadArgument = "BAD_ARGUMENT"
)

// CoreError is returned for misconfiguration of the core itself
type CoreError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *CoreError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *CoreError) Unwrap() error {
	return e.Err
}

// ControllerError is returned when a controller or action cannot be executed
type ControllerError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Controller string `json:"controller,omitempty"`
	Action     string `json:"action,omitempty"`
}

func (e *ControllerError) Error() string {
	return e.Message
}

// Is matches controller errors by code
func (e *ControllerError) Is(target error) bool {
	t, ok := target.(*ControllerError)
	return ok && t.Code == e.Code
}

// Sentinels to match against with errors.Is
var (
	ErrControllerNotFound = &ControllerError{Code: CodeNotFound, Message: "controller not found"}
	ErrBadAction          = &ControllerError{Code: CodeBadAction, Message: "action not found"}
	ErrBadArgument        = &ControllerError{Code: CodeBadArgument, Message: "invalid action argument"}
)

func controllerNotFound(name string) *ControllerError {
	return &ControllerError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("Undefined controller '%s'", name),
		Controller: name,
	}
}

func badAction(controller, action string) *ControllerError {
	return &ControllerError{
		Code:       CodeBadAction,
		Message:    fmt.Sprintf("No such action '%s'", action),
		Controller: controller,
		Action:     action,
	}
}

// BadArgument reports an invalid or missing action parameter
func BadArgument(name, reason string) *ControllerError {
	return &ControllerError{
		Code:    CodeBadArgument,
		Message: fmt.Sprintf("Invalid argument '%s': %s", name, reason),
	}
}
