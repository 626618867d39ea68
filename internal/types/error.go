package types

import "fmt"

// Error type taxonomy. Handlers and the global error handler key off
// these to pick a status code.
const (
	ErrTypeValidation    = "validation"
	ErrTypeAuthChallenge = "auth.challenge"
	ErrTypeGatewayRead   = "gateway.read"
	ErrTypeGatewayWrite  = "gateway.write"
	ErrTypeNotify        = "notify"
)

type CustomError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (e *CustomError) Error() string {
	return fmt.Sprintf("%d: %s [type: %s]", e.Code, e.Message, e.Type)
}

// ValidationError builds a 400-class CustomError
func ValidationError(message string) *CustomError {
	return &CustomError{Code: 400, Message: message, Type: ErrTypeValidation}
}

// AuthChallengeError builds the error raised when the passcode is
// rejected under both flow hints.
func AuthChallengeError(message string) *CustomError {
	return &CustomError{Code: 401, Message: message, Type: ErrTypeAuthChallenge}
}

// GatewayReadError wraps a snapshot fetch failure
func GatewayReadError(err error) *CustomError {
	return &CustomError{Code: 502, Message: err.Error(), Type: ErrTypeGatewayRead}
}

// GatewayWriteError wraps an upsert or log insert failure
func GatewayWriteError(err error) *CustomError {
	return &CustomError{Code: 502, Message: err.Error(), Type: ErrTypeGatewayWrite}
}
