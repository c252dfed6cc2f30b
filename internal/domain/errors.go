package domain

import "errors"

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	ErrUnknownAsset        = errors.New("unknown_asset")
	ErrTraderNotFound      = errors.New("trader_not_found")
	ErrTraderAlreadyExists = errors.New("trader_already_exists")
	ErrInvalidOrder        = errors.New("invalid_order")
	ErrSimulationFinished  = errors.New("simulation_finished")
)

// ValidationError represents a configuration or input validation failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
