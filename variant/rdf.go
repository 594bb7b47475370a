package variant

import (
	"strconv"
	"time"

	"github.com/c360studio/semres/storage"
	"github.com/c360studio/semres/vocabulary/nao"
)

var kindDatatypes = map[Kind]string{
	Int:      nao.XSDInt,
	Double:   nao.XSDDouble,
	Bool:     nao.XSDBoolean,
	String:   nao.XSDString,
	DateTime: nao.XSDDateTime,
}

// Datatype returns the XSD datatype literals of kind k are written with.
func Datatype(k Kind) string {
	return kindDatatypes[k]
}

// Nodes converts v into RDF objects, one node per value.
func (v Variant) Nodes() []storage.Node {
	nodes := make([]storage.Node, 0, len(v.values))
	for _, x := range v.values {
		if v.kind == Resource {
			nodes = append(nodes, storage.NewResourceNode(x.(string)))
			continue
		}
		nodes = append(nodes, storage.NewLiteral(formatValue(x), kindDatatypes[v.kind]))
	}
	return nodes
}

// FromNode converts a single RDF object into a scalar variant. Literals with
// an unknown datatype, or that fail to parse, become strings.
func FromNode(n storage.Node) Variant {
	if n.IsResource() {
		return NewResource(n.Value)
	}
	switch n.Datatype {
	case nao.XSDInt, nao.XSDInteger, nao.XSDLong:
		if i, err := strconv.ParseInt(n.Value, 10, 64); err == nil {
			return NewInt(i)
		}
	case nao.XSDDouble, nao.XSDDecimal:
		if f, err := strconv.ParseFloat(n.Value, 64); err == nil {
			return NewDouble(f)
		}
	case nao.XSDBoolean:
		if b, err := strconv.ParseBool(n.Value); err == nil {
			return NewBool(b)
		}
	case nao.XSDDateTime:
		if t, err := time.Parse(time.RFC3339Nano, n.Value); err == nil {
			return NewDateTime(t)
		}
	}
	return NewString(n.Value)
}

// FromNodes rebuilds a variant from the objects of several statements. A
// single node yields a scalar, more yield a list. Lists mixing kinds degrade
// to a string list.
func FromNodes(nodes []storage.Node) Variant {
	switch len(nodes) {
	case 0:
		return Variant{}
	case 1:
		return FromNode(nodes[0])
	}

	out := Variant{list: true, values: make([]any, 0, len(nodes))}
	mixed := false
	for _, n := range nodes {
		x := FromNode(n)
		if out.kind == Invalid {
			out.kind = x.kind
		} else if out.kind != x.kind {
			mixed = true
		}
		out.values = append(out.values, x.values[0])
	}
	if mixed {
		strs := make([]string, len(nodes))
		for i, n := range nodes {
			strs[i] = n.Value
		}
		return NewStringList(strs...)
	}
	return out
}
