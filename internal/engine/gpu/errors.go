package gpu

import (
	"errors"
	"fmt"
)

// OpenGL error codes reported by Device.Err.
const (
	CodeInvalidEnum      = 0x0500
	CodeInvalidValue     = 0x0501
	CodeInvalidOperation = 0x0502
	CodeOutOfMemory      = 0x0505
	CodeInvalidFBOp      = 0x0506
	CodeContextLost      = 0x0507
)

// Error is a device-level error code.
type Error struct {
	Code uint32
}

func (e *Error) Error() string {
	switch e.Code {
	case CodeInvalidEnum:
		return "gpu: invalid enum"
	case CodeInvalidValue:
		return "gpu: invalid value"
	case CodeInvalidOperation:
		return "gpu: invalid operation"
	case CodeOutOfMemory:
		return "gpu: out of memory"
	case CodeInvalidFBOp:
		return "gpu: invalid framebuffer operation"
	case CodeContextLost:
		return "gpu: context lost"
	default:
		return fmt.Sprintf("gpu: error 0x%04x", e.Code)
	}
}

// IsContextLost reports whether err carries a lost-context code.
func IsContextLost(err error) bool {
	var ge *Error
	return errors.As(err, &ge) && ge.Code == CodeContextLost
}
