package storage

import (
	"fmt"
	"strings"

	"github.com/c360studio/semres/vocabulary/nao"
)

// MainContext is the named graph all resource statements are written into.
const MainContext = "main"

// NodeKind distinguishes resource nodes from literals.
type NodeKind uint8

const (
	// NodeResource is a node identified by a URI.
	NodeResource NodeKind = iota + 1
	// NodeLiteral is a (typed) literal value.
	NodeLiteral
)

// Node is the object of a statement.
type Node struct {
	Kind     NodeKind `json:"kind"`
	Value    string   `json:"value"`
	Datatype string   `json:"datatype,omitempty"`
	Language string   `json:"lang,omitempty"`
}

// NewResourceNode returns a node referencing the resource with the given URI.
func NewResourceNode(uri string) Node {
	return Node{Kind: NodeResource, Value: uri}
}

// NewLiteral returns a typed literal. An empty datatype means xsd:string.
func NewLiteral(value, datatype string) Node {
	if datatype == "" {
		datatype = nao.XSDString
	}
	return Node{Kind: NodeLiteral, Value: value, Datatype: datatype}
}

// IsResource reports whether the node references a resource.
func (n Node) IsResource() bool {
	return n.Kind == NodeResource
}

// Key returns a string that identifies the node for indexing. Two nodes are
// equal if and only if their keys are equal.
func (n Node) Key() string {
	if n.Kind == NodeResource {
		return "R|" + n.Value
	}
	return "L|" + n.Datatype + "|" + n.Language + "|" + n.Value
}

// String renders the node in N-Triples syntax.
func (n Node) String() string {
	if n.Kind == NodeResource {
		return "<" + n.Value + ">"
	}
	s := `"` + EscapeLiteral(n.Value) + `"`
	if n.Language != "" {
		return s + "@" + n.Language
	}
	if n.Datatype != "" && n.Datatype != nao.XSDString {
		return s + "^^<" + n.Datatype + ">"
	}
	return s
}

// EscapeLiteral escapes special characters for RDF serialisation.
func EscapeLiteral(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	s = strings.ReplaceAll(s, "\t", "\\t")
	return s
}

// Statement is a single RDF triple in a named graph.
type Statement struct {
	Subject   string `json:"s"`
	Predicate string `json:"p"`
	Object    Node   `json:"o"`
	Context   string `json:"c,omitempty"`
}

// Validate checks that the statement can be stored.
func (s Statement) Validate() error {
	if s.Subject == "" || s.Predicate == "" || s.Object.Kind == 0 {
		return fmt.Errorf("%w: %s", ErrInvalidStatement, s)
	}
	return nil
}

// Key uniquely identifies the statement.
func (s Statement) Key() string {
	return s.Subject + "\x00" + s.Predicate + "\x00" + s.Object.Key() + "\x00" + s.Context
}

// String renders the statement in N-Quads-like syntax.
func (s Statement) String() string {
	out := "<" + s.Subject + "> <" + s.Predicate + "> " + s.Object.String()
	if s.Context != "" {
		out += " <" + s.Context + ">"
	}
	return out + " ."
}

// Pattern selects statements. Empty fields match anything.
type Pattern struct {
	Subject   string
	Predicate string
	Object    *Node
	Context   string

	// Limit caps the number of returned statements; zero means no limit.
	Limit int
}

// Matches reports whether the statement satisfies the pattern.
func (p Pattern) Matches(s Statement) bool {
	if p.Subject != "" && p.Subject != s.Subject {
		return false
	}
	if p.Predicate != "" && p.Predicate != s.Predicate {
		return false
	}
	if p.Object != nil && p.Object.Key() != s.Object.Key() {
		return false
	}
	if p.Context != "" && p.Context != s.Context {
		return false
	}
	return true
}

// limitReached reports whether n results already satisfy the pattern's limit.
func (p Pattern) limitReached(n int) bool {
	return p.Limit > 0 && n >= p.Limit
}
