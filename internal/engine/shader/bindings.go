package shader

// Uniform is the result of a uniform lookup: either Bound with a location,
// or Unbound because the compiler dropped (or never saw) the uniform.
// Writers branch on Bound and skip unbound uniforms.
type Uniform struct {
	Location int32
	Bound    bool
}

// Unbound is the lookup result for a uniform absent from the program.
var Unbound = Uniform{Location: -1}

// Attribute returns the vertex attribute slot for name. A missing attribute
// is an *AttributeMissingError: the vertex layout cannot be bound without it.
func (p *Program) Attribute(name string) (uint32, error) {
	if slot, ok := p.attributes[name]; ok {
		return slot, nil
	}
	if !p.linked {
		return 0, ErrNotCompiled
	}
	loc := p.dev.AttribLocation(p.handle, name)
	if loc < 0 {
		return 0, &AttributeMissingError{Name: name}
	}
	p.attributes[name] = uint32(loc)
	return uint32(loc), nil
}

// Uniform returns the binding for name, or Unbound. Never an error.
func (p *Program) Uniform(name string) Uniform {
	if u, ok := p.uniforms[name]; ok {
		return u
	}
	if !p.linked {
		return Unbound
	}
	loc := p.dev.UniformLocation(p.handle, name)
	u := Unbound
	if loc >= 0 {
		u = Uniform{Location: loc, Bound: true}
	}
	p.uniforms[name] = u
	return u
}
