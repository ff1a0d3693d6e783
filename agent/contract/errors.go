package contract

import "errors"

var (
	ErrModelInvoke     = errors.New("model invoke failed")
	ErrSchemaViolation = errors.New("model response violates schema")
	ErrPromptMissing   = errors.New("required prompt is missing")
	ErrValidation      = errors.New("validation failed")
	ErrRoutingFailure  = errors.New("routing classification failed")
	ErrInvalidSession  = errors.New("session id is empty")
	ErrInvalidMessage  = errors.New("message is empty")
	ErrToolArguments   = errors.New("invalid tool arguments")
)
