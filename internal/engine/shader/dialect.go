package shader

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Faultbox/shaderwall/internal/engine/gpu"
)

// Dialect selects how source text is prepared before compilation.
type Dialect int

const (
	// DialectNative passes source text to the driver unchanged.
	DialectNative Dialect = iota
	// DialectES100 accepts WebGL-style GLSL ES 1.00 text and rewrites it
	// for a GLSL 4.10 core context.
	DialectES100
)

// FragColorOutput is the output variable that replaces gl_FragColor.
const FragColorOutput = "fragColor"

const coreHeader = "#version 410 core\n"

func (d Dialect) String() string {
	switch d {
	case DialectNative:
		return "native"
	case DialectES100:
		return "es100"
	default:
		return fmt.Sprintf("dialect(%d)", int(d))
	}
}

// ParseDialect parses a config value.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "es100", "webgl":
		return DialectES100, nil
	case "native":
		return DialectNative, nil
	default:
		return 0, fmt.Errorf("unknown shader dialect %q", s)
	}
}

var (
	versionRe   = regexp.MustCompile(`(?m)^\s*#\s*version\b`)
	es100Re     = regexp.MustCompile(`(?m)^[ \t]*#[ \t]*version[ \t]+100([ \t]+es)?[ \t]*(?:\r?\n|$)`)
	attributeKw = regexp.MustCompile(`\battribute\b`)
	varyingKw   = regexp.MustCompile(`\bvarying\b`)
	texture2DRe = regexp.MustCompile(`\btexture2D\s*\(`)
	fragColorRe = regexp.MustCompile(`\bgl_FragColor\b`)
)

// Prepare returns src rewritten for dialect d. Text that declares any
// #version other than 100 is left alone.
func Prepare(src Source, d Dialect) Source {
	if d != DialectES100 {
		return src
	}
	text := src.Text
	if loc := es100Re.FindStringIndex(text); loc != nil {
		text = text[:loc[0]] + text[loc[1]:]
	} else if versionRe.MatchString(text) {
		return src
	}

	text = texture2DRe.ReplaceAllString(text, "texture(")

	header := coreHeader
	switch src.Stage {
	case gpu.StageVertex:
		text = attributeKw.ReplaceAllString(text, "in")
		text = varyingKw.ReplaceAllString(text, "out")
	case gpu.StageFragment:
		text = varyingKw.ReplaceAllString(text, "in")
		if fragColorRe.MatchString(text) {
			text = fragColorRe.ReplaceAllString(text, FragColorOutput)
			header += "out vec4 " + FragColorOutput + ";\n"
		}
	}

	return Source{Stage: src.Stage, Text: header + text}
}
