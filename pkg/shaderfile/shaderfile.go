// Package shaderfile loads shader descriptions: a value table and an
// instruction listing in the ir text syntax, wrapped in YAML.
//
//	name: blend
//	generation: gen7
//	payload: 2
//	values: [1, 1, 2]
//	code: |
//	  mov v0, p0
//	  add v1, v0, #1
//
// The code may also be a list of strings; entries holding an immediate
// must then be quoted, since YAML reads " #" as the start of a comment.
package shaderfile

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/raymyers/ralph-ra/pkg/hw"
	"github.com/raymyers/ralph-ra/pkg/ir"
)

// Shader is a decoded shader description
type Shader struct {
	// Generation names the hardware preset, empty for the default
	Generation string
	// Payload overrides the preset's payload slot count when set
	Payload *int
	Program *ir.Program
}

type file struct {
	Name       string    `yaml:"name"`
	Generation string    `yaml:"generation"`
	Payload    *int      `yaml:"payload"`
	Values     []int     `yaml:"values"`
	Code       yaml.Node `yaml:"code"`
}

// Load reads and parses a shader file. A shader without a name is named
// after the file.
func Load(path string) (*Shader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading shader")
	}
	s, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	if s.Program.Name == "" {
		s.Program.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return s, nil
}

// Parse decodes a shader description and builds its program.
func Parse(data []byte) (*Shader, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "decoding shader")
	}

	p := ir.NewProgram(f.Name)
	for i, size := range f.Values {
		if size <= 0 {
			return nil, errors.Errorf("v%d: size must be positive, got %d", i, size)
		}
		p.NewValue(size)
	}

	lines, err := codeLines(&f.Code)
	if err != nil {
		return nil, err
	}
	for _, l := range lines {
		in, err := ir.ParseInstr(l.text)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", l.line)
		}
		h := p.Emit(in)
		if err := p.CheckInstr(p.Code.At(h)); err != nil {
			return nil, errors.Wrapf(err, "line %d: %s", l.line, l.text)
		}
	}

	if f.Payload != nil && *f.Payload < 0 {
		return nil, errors.Errorf("payload must not be negative, got %d", *f.Payload)
	}
	if _, err := hw.Lookup(f.Generation); err != nil {
		return nil, err
	}
	return &Shader{Generation: f.Generation, Payload: f.Payload, Program: p}, nil
}

type codeLine struct {
	line int
	text string
}

// codeLines flattens the code node into instructions tagged with their
// line in the file. Blank lines and lines starting with ';' are skipped.
func codeLines(n *yaml.Node) ([]codeLine, error) {
	var lines []codeLine
	add := func(line int, text string) {
		text = strings.TrimSpace(text)
		if text != "" && !strings.HasPrefix(text, ";") {
			lines = append(lines, codeLine{line: line, text: text})
		}
	}

	switch n.Kind {
	case 0:
	case yaml.SequenceNode:
		for _, item := range n.Content {
			if item.Kind != yaml.ScalarNode {
				return nil, errors.Errorf("line %d: instruction must be a string", item.Line)
			}
			add(item.Line, item.Value)
		}
	case yaml.ScalarNode:
		// A block scalar starts on the line after its indicator.
		first := n.Line
		if n.Style&(yaml.LiteralStyle|yaml.FoldedStyle) != 0 {
			first++
		}
		for i, text := range strings.Split(n.Value, "\n") {
			add(first+i, text)
		}
	default:
		return nil, errors.Errorf("line %d: code must be a block of text or a list of instructions", n.Line)
	}
	return lines, nil
}

// Hardware returns the preset the shader asks for with its payload override applied
func (s *Shader) Hardware() (hw.Config, error) {
	c, err := hw.Lookup(s.Generation)
	if err != nil {
		return hw.Config{}, err
	}
	return s.Apply(c), nil
}

// Apply returns c with the shader's own overrides applied
func (s *Shader) Apply(c hw.Config) hw.Config {
	if s.Payload != nil {
		c.PayloadSlots = *s.Payload
	}
	return c
}
