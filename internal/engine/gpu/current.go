package gpu

// CurrentProgram is the context-wide "current program" slot made explicit.
// It is not assumed sticky: other code sharing the context may rebind between
// frames, so the owner calls Assert before every draw.
type CurrentProgram struct {
	dev  Device
	prog Program
}

// NewCurrentProgram returns a binding of p on dev. It does not bind yet.
func NewCurrentProgram(dev Device, p Program) *CurrentProgram {
	return &CurrentProgram{dev: dev, prog: p}
}

// Program returns the bound program, or 0 after Clear.
func (c *CurrentProgram) Program() Program {
	return c.prog
}

// Assert makes the program current, unconditionally.
func (c *CurrentProgram) Assert() {
	if c.prog == 0 {
		return
	}
	c.dev.UseProgram(c.prog)
}

// Clear binds program 0 and forgets the program.
func (c *CurrentProgram) Clear() {
	if c.prog == 0 {
		return
	}
	c.dev.UseProgram(0)
	c.prog = 0
}
