package native

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hupe1980/qibridge/signature"
)

// String renders n for diagnostics, e.g. `[1, 2]`, `{"a": m(1)}`, `(1.5, "x")`.
func (n *Node) String() string {
	var b strings.Builder
	n.format(&b)
	return b.String()
}

func (n *Node) format(b *strings.Builder) {
	if n == nil {
		b.WriteString("void")
		return
	}
	switch n.Kind() {
	case signature.Void:
		b.WriteString("void")
	case signature.Bool:
		b.WriteString(strconv.FormatBool(n.Bool))
	case signature.Int8, signature.Int16, signature.Int32, signature.Int64:
		b.WriteString(strconv.FormatInt(n.Int, 10))
	case signature.UInt8, signature.UInt16, signature.UInt32, signature.UInt64:
		b.WriteString(strconv.FormatUint(n.Uint, 10))
	case signature.Float32:
		b.WriteString(strconv.FormatFloat(n.Float, 'g', -1, 32))
	case signature.Float64:
		b.WriteString(strconv.FormatFloat(n.Float, 'g', -1, 64))
	case signature.String:
		b.WriteString(strconv.Quote(n.Str))
	case signature.Raw:
		fmt.Fprintf(b, "r<%d bytes>", len(n.Raw))
	case signature.Object:
		fmt.Fprintf(b, "o<%s>", n.Ref.Service)
	case signature.Dynamic:
		b.WriteString("m(")
		n.Inner.format(b)
		b.WriteByte(')')
	case signature.List:
		b.WriteByte('[')
		writeAll(b, n.Elems)
		b.WriteByte(']')
	case signature.Struct:
		b.WriteByte('(')
		writeAll(b, n.Elems)
		b.WriteByte(')')
	case signature.Map:
		b.WriteByte('{')
		for i, k := range n.Keys {
			if i > 0 {
				b.WriteString(", ")
			}
			k.format(b)
			b.WriteString(": ")
			n.Elems[i].format(b)
		}
		b.WriteByte('}')
	}
}

func writeAll(b *strings.Builder, nodes []*Node) {
	for i, e := range nodes {
		if i > 0 {
			b.WriteString(", ")
		}
		e.format(b)
	}
}
