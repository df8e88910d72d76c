package schema

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// ShapeSchema describes the element structure of a message type: which
// elements must appear where, how often, and the lexical constraints of
// their text. Paths are absolute and use local names, e.g.
// "/Document/CstmrCdtTrfInitn/GrpHdr/MsgId".
type ShapeSchema struct {
	MessageType string        `yaml:"messageType"`
	Namespace   string        `yaml:"namespace"`
	Root        string        `yaml:"root"`
	Elements    []ElementRule `yaml:"elements"`

	byPath   map[string]*ElementRule
	children map[string][]*ElementRule
}

// ElementRule constrains one element path. MaxOccurs 0 means unbounded.
type ElementRule struct {
	Path       string   `yaml:"path"`
	MinOccurs  int      `yaml:"minOccurs"`
	MaxOccurs  int      `yaml:"maxOccurs"`
	MinLength  int      `yaml:"minLength"`
	MaxLength  int      `yaml:"maxLength"`
	Pattern    string   `yaml:"pattern"`
	Attributes []string `yaml:"attributes"`
	// Closed rejects child elements that have no rule of their own.
	Closed bool `yaml:"closed"`

	name    string
	pattern *regexp.Regexp
}

// ParseShapeSchema decodes and compiles a YAML shape schema.
func ParseShapeSchema(data []byte) (*ShapeSchema, error) {
	var s ShapeSchema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding shape schema: %w", err)
	}
	if err := s.compile(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *ShapeSchema) compile() error {
	if s.Root == "" {
		return errors.New("shape schema: root is required")
	}
	s.byPath = make(map[string]*ElementRule, len(s.Elements))
	s.children = make(map[string][]*ElementRule)

	rootPath := "/" + s.Root
	for i := range s.Elements {
		r := &s.Elements[i]
		if !strings.HasPrefix(r.Path, rootPath+"/") && r.Path != rootPath {
			return fmt.Errorf("shape schema: path %q is outside root %q", r.Path, s.Root)
		}
		if _, dup := s.byPath[r.Path]; dup {
			return fmt.Errorf("shape schema: duplicate path %q", r.Path)
		}
		if r.MinOccurs < 0 || r.MaxOccurs < 0 || (r.MaxOccurs > 0 && r.MinOccurs > r.MaxOccurs) {
			return fmt.Errorf("shape schema: invalid occurrence bounds for %q", r.Path)
		}
		if r.Pattern != "" {
			re, err := regexp.Compile("^(?:" + r.Pattern + ")$")
			if err != nil {
				return fmt.Errorf("shape schema: pattern of %q: %w", r.Path, err)
			}
			r.pattern = re
		}
		r.name = path.Base(r.Path)
		s.byPath[r.Path] = r
		if r.Path != rootPath {
			parent := path.Dir(r.Path)
			s.children[parent] = append(s.children[parent], r)
		}
	}
	return nil
}

type frame struct {
	path   string
	name   string
	rule   *ElementRule
	counts map[string]int
	text   strings.Builder
}

// Validate checks text in a single streaming pass. Syntax errors end the
// pass and are reported as a final violation.
func (s *ShapeSchema) Validate(text []byte) ([]Violation, error) {
	text = bytes.TrimPrefix(text, []byte{0xEF, 0xBB, 0xBF})
	pos := newPositions(text)
	dec := xml.NewDecoder(bytes.NewReader(text))
	dec.Strict = true

	var (
		out   []Violation
		stack []*frame
	)
	report := func(offset int64, format string, args ...any) {
		line, col := pos.at(offset)
		out = append(out, Violation{Line: line, Column: col, Message: fmt.Sprintf(format, args...)})
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			var syn *xml.SyntaxError
			if errors.As(err, &syn) {
				report(dec.InputOffset(), "%s", syn.Msg)
				return out, nil
			}
			return out, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			if len(stack) == 0 {
				if name != s.Root {
					report(dec.InputOffset(), "Cannot find the declaration of element '%s', expected '%s'", name, s.Root)
					return out, nil
				}
				if s.Namespace != "" && !strings.HasPrefix(t.Name.Space, s.Namespace) {
					report(dec.InputOffset(), "Namespace '%s' of element '%s' does not match '%s'", t.Name.Space, name, s.Namespace)
				}
				f := s.newFrame("/"+name, name)
				s.checkAttributes(f, t, dec.InputOffset(), report)
				stack = append(stack, f)
				continue
			}

			parent := stack[len(stack)-1]
			parent.counts[name]++
			f := s.newFrame(parent.path+"/"+name, name)

			if f.rule != nil {
				if f.rule.MaxOccurs > 0 && parent.counts[name] > f.rule.MaxOccurs {
					report(dec.InputOffset(), "Element '%s' occurs more than %d time(s) in '%s'", name, f.rule.MaxOccurs, parent.name)
				}
				s.checkAttributes(f, t, dec.InputOffset(), report)
			} else if parent.rule != nil && parent.rule.Closed {
				report(dec.InputOffset(), "Invalid content was found starting with element '%s' in '%s'", name, parent.name)
			}
			stack = append(stack, f)

		case xml.CharData:
			if len(stack) > 0 {
				if f := stack[len(stack)-1]; f.rule != nil && f.rule.hasTextConstraints() {
					f.text.Write(t)
				}
			}

		case xml.EndElement:
			if len(stack) == 0 {
				continue
			}
			f := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			s.closeFrame(f, dec.InputOffset(), report)
		}
	}
	return out, nil
}

func (s *ShapeSchema) newFrame(p, name string) *frame {
	return &frame{
		path:   p,
		name:   name,
		rule:   s.byPath[p],
		counts: make(map[string]int),
	}
}

func (s *ShapeSchema) checkAttributes(f *frame, t xml.StartElement, offset int64, report func(int64, string, ...any)) {
	if f.rule == nil {
		return
	}
	for _, want := range f.rule.Attributes {
		found := false
		for _, a := range t.Attr {
			if a.Name.Local == want {
				found = true
				break
			}
		}
		if !found {
			report(offset, "Attribute '%s' must appear on element '%s'", want, f.name)
		}
	}
}

func (s *ShapeSchema) closeFrame(f *frame, offset int64, report func(int64, string, ...any)) {
	for _, child := range s.children[f.path] {
		if n := f.counts[child.name]; n < child.MinOccurs {
			report(offset, "Missing required element '%s' in '%s' (found %d, expected at least %d)", child.name, f.name, n, child.MinOccurs)
		}
	}

	r := f.rule
	if r == nil || !r.hasTextConstraints() {
		return
	}
	value := strings.TrimSpace(f.text.String())
	n := utf8.RuneCountInString(value)
	if r.MinLength > 0 && n < r.MinLength {
		report(offset, "Value '%s' of element '%s' is shorter than %d character(s)", value, f.name, r.MinLength)
	}
	if r.MaxLength > 0 && n > r.MaxLength {
		report(offset, "Value of element '%s' has length %d, exceeding the maximum of %d", f.name, n, r.MaxLength)
	}
	if r.pattern != nil && !r.pattern.MatchString(value) {
		report(offset, "Value '%s' of element '%s' is not facet-valid with respect to pattern '%s'", value, f.name, r.Pattern)
	}
}

func (r *ElementRule) hasTextConstraints() bool {
	return r.MinLength > 0 || r.MaxLength > 0 || r.pattern != nil
}

// positions maps byte offsets to 1-based line and column numbers.
type positions struct {
	text       []byte
	lineStarts []int
}

func newPositions(text []byte) *positions {
	starts := []int{0}
	for i, b := range text {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &positions{text: text, lineStarts: starts}
}

func (p *positions) at(offset int64) (line, column int) {
	off := int(offset)
	if off > len(p.text) {
		off = len(p.text)
	}
	i := sort.Search(len(p.lineStarts), func(i int) bool { return p.lineStarts[i] > off }) - 1
	if i < 0 {
		i = 0
	}
	return i + 1, utf8.RuneCount(p.text[p.lineStarts[i]:off]) + 1
}
