package shader

import (
	"errors"
	"fmt"

	"github.com/Faultbox/shaderwall/internal/engine/gpu"
)

// ErrNotCompiled is returned by Link when given a shader that is not (or no
// longer) compiled.
var ErrNotCompiled = errors.New("shader not compiled")

// CompileError reports a stage that failed to compile.
type CompileError struct {
	Stage gpu.Stage
	Log   string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s shader: %s", e.Stage, e.Log)
}

// LinkError reports a program that failed to link.
type LinkError struct {
	Log string
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("link: %s", e.Log)
}

// StageMismatchError reports a shader passed to Link in the wrong slot.
type StageMismatchError struct {
	Want gpu.Stage
	Got  gpu.Stage
}

func (e *StageMismatchError) Error() string {
	return fmt.Sprintf("expected %s shader, got %s", e.Want, e.Got)
}

// AttributeMissingError reports a vertex attribute the program does not
// expose. Rendering cannot start without it.
type AttributeMissingError struct {
	Name string
}

func (e *AttributeMissingError) Error() string {
	return fmt.Sprintf("attribute %q not found in program", e.Name)
}
