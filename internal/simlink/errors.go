package simlink

import "errors"

var (
	ErrNotConnected      = errors.New("simlink: not connected")
	ErrTimeout           = errors.New("simlink: connection timeout")
	ErrUnknownField      = errors.New("simlink: unknown state field")
	ErrConnectionRefused = errors.New("simlink: connection refused")
)
