package export

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/c360studio/semres/storage"
	"github.com/c360studio/semres/vocabulary/nao"
)

// FormatInfo provides metadata about an export format.
type FormatInfo struct {
	// Name is the format identifier.
	Name Format

	// MIMEType is the standard MIME type.
	MIMEType string

	// Extension is the file extension (with dot).
	Extension string

	// Description describes the format.
	Description string
}

// FormatRegistry contains metadata for all supported formats.
var FormatRegistry = map[Format]FormatInfo{
	FormatTurtle: {
		Name:        FormatTurtle,
		MIMEType:    "text/turtle",
		Extension:   ".ttl",
		Description: "Turtle - Terse RDF Triple Language",
	},
	FormatNTriples: {
		Name:        FormatNTriples,
		MIMEType:    "application/n-triples",
		Extension:   ".nt",
		Description: "N-Triples - Line-based RDF format",
	},
	FormatJSONLD: {
		Name:        FormatJSONLD,
		MIMEType:    "application/ld+json",
		Extension:   ".jsonld",
		Description: "JSON-LD - JSON for Linked Data",
	},
}

// GetFormatInfo returns metadata for a format.
func GetFormatInfo(format Format) (FormatInfo, bool) {
	info, ok := FormatRegistry[format]
	return info, ok
}

// TurtleWriter writes RDF in Turtle format.
type TurtleWriter struct {
	prefixes map[string]string
	sb       strings.Builder
}

// NewTurtleWriter creates a Turtle writer using prefixes for compact IRIs.
func NewTurtleWriter(prefixes map[string]string) *TurtleWriter {
	if prefixes == nil {
		prefixes = defaultPrefixes()
	}
	return &TurtleWriter{prefixes: prefixes}
}

// SetPrefix sets a namespace prefix.
func (w *TurtleWriter) SetPrefix(prefix, iri string) {
	w.prefixes[prefix] = iri
}

// WritePrefixes writes prefix declarations.
func (w *TurtleWriter) WritePrefixes() {
	// Sort prefixes for consistent output
	keys := make([]string, 0, len(w.prefixes))
	for k := range w.prefixes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, prefix := range keys {
		fmt.Fprintf(&w.sb, "@prefix %s: <%s> .\n", prefix, w.prefixes[prefix])
	}
	w.sb.WriteString("\n")
}

// WriteSubject starts a new subject block.
func (w *TurtleWriter) WriteSubject(iri string) {
	fmt.Fprintf(&w.sb, "%s\n", w.iri(iri))
}

// WriteTypes writes the type assertions of the current subject.
func (w *TurtleWriter) WriteTypes(typeIRIs []string, last bool) {
	parts := make([]string, 0, len(typeIRIs))
	for _, t := range typeIRIs {
		parts = append(parts, w.iri(t))
	}
	fmt.Fprintf(&w.sb, "    a %s%s\n", strings.Join(parts, ", "), terminator(last))
}

// WritePredicate writes a predicate with one or more objects.
func (w *TurtleWriter) WritePredicate(predicateIRI string, objects []storage.Node, last bool) {
	parts := make([]string, 0, len(objects))
	for _, o := range objects {
		parts = append(parts, w.object(o))
	}
	fmt.Fprintf(&w.sb, "    %s %s%s\n", w.iri(predicateIRI), strings.Join(parts, ", "), terminator(last))
}

// WriteBlank writes a blank line for readability.
func (w *TurtleWriter) WriteBlank() {
	w.sb.WriteString("\n")
}

// String returns the accumulated Turtle output.
func (w *TurtleWriter) String() string {
	return w.sb.String()
}

func (w *TurtleWriter) iri(iri string) string {
	if c := compact(w.prefixes, iri); c != iri {
		return c
	}
	return "<" + iri + ">"
}

func (w *TurtleWriter) object(n storage.Node) string {
	if n.IsResource() {
		return w.iri(n.Value)
	}
	s := `"` + storage.EscapeLiteral(n.Value) + `"`
	switch {
	case n.Language != "":
		return s + "@" + n.Language
	case n.Datatype == "" || n.Datatype == nao.XSDString:
		return s
	default:
		return s + "^^" + w.iri(n.Datatype)
	}
}

func terminator(last bool) string {
	if last {
		return " ."
	}
	return " ;"
}

// NTriplesWriter writes RDF in N-Triples format.
type NTriplesWriter struct {
	sb strings.Builder
}

// NewNTriplesWriter creates a new N-Triples writer.
func NewNTriplesWriter() *NTriplesWriter {
	return &NTriplesWriter{}
}

// WriteStatement writes a single triple. The named graph is ignored.
func (w *NTriplesWriter) WriteStatement(st storage.Statement) {
	fmt.Fprintf(&w.sb, "<%s> <%s> %s .\n", st.Subject, st.Predicate, st.Object)
}

// String returns the accumulated N-Triples output.
func (w *NTriplesWriter) String() string {
	return w.sb.String()
}

// JSONLDDocument represents a JSON-LD document structure.
type JSONLDDocument struct {
	Context map[string]any `json:"@context"`
	Graph   []JSONLDNode   `json:"@graph"`
}

// JSONLDNode represents a node in a JSON-LD graph.
type JSONLDNode struct {
	ID         string         `json:"@id"`
	Type       []string       `json:"@type,omitempty"`
	Properties map[string]any `json:"-"`
}

// MarshalJSON implements custom JSON marshaling for JSONLDNode.
func (n JSONLDNode) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(n.Properties)+2)
	for k, v := range n.Properties {
		m[k] = v
	}
	m["@id"] = n.ID
	if len(n.Type) > 0 {
		m["@type"] = n.Type
	}
	return json.Marshal(m)
}

// UnmarshalJSON collects every key other than @id and @type into Properties.
func (n *JSONLDNode) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*n = JSONLDNode{Properties: make(map[string]any)}
	for k, v := range raw {
		var err error
		switch k {
		case "@id":
			err = json.Unmarshal(v, &n.ID)
		case "@type":
			err = json.Unmarshal(v, &n.Type)
		default:
			var value any
			err = json.Unmarshal(v, &value)
			n.Properties[k] = value
		}
		if err != nil {
			return fmt.Errorf("decode %s: %w", k, err)
		}
	}
	return nil
}

// JSONLDWriter writes RDF in JSON-LD format.
type JSONLDWriter struct {
	doc JSONLDDocument
}

// NewJSONLDWriter creates a new JSON-LD writer.
func NewJSONLDWriter() *JSONLDWriter {
	return &JSONLDWriter{
		doc: JSONLDDocument{
			Context: make(map[string]any),
			Graph:   make([]JSONLDNode, 0),
		},
	}
}

// SetContext sets the @context with prefixes.
func (w *JSONLDWriter) SetContext(prefixes map[string]string) {
	for k, v := range prefixes {
		w.doc.Context[k] = v
	}
}

// AddNode adds a node to the graph.
func (w *JSONLDWriter) AddNode(id string, types []string, properties map[string]any) {
	w.doc.Graph = append(w.doc.Graph, JSONLDNode{
		ID:         id,
		Type:       types,
		Properties: properties,
	})
}

// Encode returns the indented JSON-LD document.
func (w *JSONLDWriter) Encode() (string, error) {
	data, err := json.MarshalIndent(w.doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal json-ld: %w", err)
	}
	return string(data), nil
}

// ParseJSONLD decodes a document written by JSONLDWriter.
func ParseJSONLD(data []byte) (*JSONLDDocument, error) {
	var doc JSONLDDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse json-ld: %w", err)
	}
	return &doc, nil
}
