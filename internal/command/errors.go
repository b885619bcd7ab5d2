package command

import "errors"

// Domain errors for fan command dispatch.
var (
	// ErrUnknownCommand is returned for a command name that is not in the table.
	ErrUnknownCommand = errors.New("command: unknown command")

	// ErrInvalidParameters is returned when a required parameter is missing or
	// has the wrong type.
	ErrInvalidParameters = errors.New("command: invalid parameters")

	// ErrFeatureDisabled is returned when the command belongs to a feature
	// switched off in configuration.
	ErrFeatureDisabled = errors.New("command: feature disabled")
)
