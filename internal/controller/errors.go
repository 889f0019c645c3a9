package controller

import "errors"

var (
	// ErrBadCommand indicates a command payload that failed to parse or
	// validate.
	ErrBadCommand = errors.New("controller: invalid command")

	// ErrUnknownDevice indicates a command addressed to a device not in
	// the registry.
	ErrUnknownDevice = errors.New("controller: unknown device")

	// ErrBadUniverse indicates a universe configuration that cannot be
	// bound to the enabled transports.
	ErrBadUniverse = errors.New("controller: invalid universe binding")
)
