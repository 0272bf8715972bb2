package signature

import (
	"fmt"
	"strings"

	"github.com/hupe1980/qibridge/core"
)

// maxDepth bounds container nesting so hostile input cannot exhaust the stack.
const maxDepth = 64

// Parse parses a complete signature string into its Shape.
//
// Unbalanced or truncated containers, unknown codes and trailing input fail
// with a *core.SignatureError wrapping core.ErrMalformedSignature. Reserved
// but unimplemented codes wrap core.ErrUnsupportedSignature.
func Parse(sig string) (*Shape, error) {
	p := &parser{src: sig}
	if sig == "" {
		return nil, p.malformed("empty signature")
	}
	shape, err := p.parseType(0)
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.src) {
		return nil, p.malformed(fmt.Sprintf("trailing input %q", p.src[p.pos:]))
	}
	return shape, nil
}

// MustParse is like Parse but panics on error. Intended for package-level
// declarations of known-good signatures.
func MustParse(sig string) *Shape {
	shape, err := Parse(sig)
	if err != nil {
		panic(err)
	}
	return shape
}

type parser struct {
	src string
	pos int
}

func (p *parser) parseType(depth int) (*Shape, error) {
	if p.pos >= len(p.src) {
		return nil, p.malformed("truncated signature")
	}
	if depth > maxDepth {
		return nil, p.malformed("nesting too deep")
	}
	c := p.src[p.pos]
	if shape := Primitive(Kind(c)); shape != nil {
		p.pos++
		return shape, nil
	}

	switch c {
	case byte(List):
		p.pos++
		elem, err := p.parseType(depth + 1)
		if err != nil {
			return nil, err
		}
		if err := p.expect(ListEnd, "unterminated list"); err != nil {
			return nil, err
		}
		return NewList(elem), nil

	case byte(Map):
		p.pos++
		key, err := p.parseType(depth + 1)
		if err != nil {
			return nil, err
		}
		val, err := p.parseType(depth + 1)
		if err != nil {
			return nil, err
		}
		if err := p.expect(MapEnd, "map needs exactly one key and one value"); err != nil {
			return nil, err
		}
		return NewMap(key, val), nil

	case byte(Struct):
		p.pos++
		var fields []*Shape
		for {
			if p.pos >= len(p.src) {
				return nil, p.malformed("unterminated struct")
			}
			if p.src[p.pos] == StructEnd {
				p.pos++
				break
			}
			f, err := p.parseType(depth + 1)
			if err != nil {
				return nil, err
			}
			fields = append(fields, f)
		}
		shape := NewStruct(fields...)
		if p.pos < len(p.src) && p.src[p.pos] == AnnotationBegin {
			return p.parseAnnotation(shape)
		}
		return shape, nil

	case ListEnd, MapEnd, StructEnd, AnnotationEnd, AnnotationBegin:
		return nil, p.malformed(fmt.Sprintf("unexpected %q", c))
	}

	if name, ok := reserved[c]; ok {
		return nil, &core.SignatureError{
			Signature: p.src,
			Pos:       p.pos,
			Msg:       fmt.Sprintf("%s type %q is not implemented", name, c),
			Err:       core.ErrUnsupportedSignature,
		}
	}
	return nil, p.malformed(fmt.Sprintf("unknown type code %q", c))
}

// parseAnnotation reads "<Name,field,...>" following a struct.
func (p *parser) parseAnnotation(shape *Shape) (*Shape, error) {
	start := p.pos
	end := strings.IndexByte(p.src[start:], AnnotationEnd)
	if end < 0 {
		return nil, p.malformed("unterminated struct annotation")
	}
	body := p.src[start+1 : start+end]
	if strings.ContainsAny(body, "<[({") {
		return nil, p.malformed("nested struct annotation")
	}
	p.pos = start + end + 1

	parts := strings.Split(body, ",")
	name, fieldNames := parts[0], parts[1:]
	if len(fieldNames) > 0 && len(fieldNames) != len(shape.Fields) {
		p.pos = start
		return nil, p.malformed(fmt.Sprintf("annotation names %d fields, struct has %d", len(fieldNames), len(shape.Fields)))
	}
	return shape.Annotated(name, fieldNames...), nil
}

func (p *parser) expect(c byte, msg string) error {
	if p.pos >= len(p.src) || p.src[p.pos] != c {
		return p.malformed(msg)
	}
	p.pos++
	return nil
}

func (p *parser) malformed(msg string) error {
	return &core.SignatureError{Signature: p.src, Pos: p.pos, Msg: msg, Err: core.ErrMalformedSignature}
}
