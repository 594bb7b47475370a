// Package export serialises resources as RDF.
//
// Statements are grouped by subject and written in Turtle, N-Triples or
// JSON-LD. Turtle and JSON-LD output compacts IRIs with the NAO prefixes.
package export

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/c360studio/semres/storage"
	"github.com/c360studio/semres/vocabulary/nao"
)

// Format specifies the output RDF serialization format.
type Format string

const (
	// FormatTurtle outputs Turtle (Terse RDF Triple Language).
	FormatTurtle Format = "turtle"

	// FormatNTriples outputs N-Triples format.
	FormatNTriples Format = "ntriples"

	// FormatJSONLD outputs JSON-LD format.
	FormatJSONLD Format = "jsonld"
)

// ErrUnsupportedFormat is returned for unknown format names.
var ErrUnsupportedFormat = errors.New("unsupported format")

// ParseFormat parses a format name. The file extensions of FormatRegistry are
// accepted as aliases.
func ParseFormat(s string) (Format, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for f, info := range FormatRegistry {
		if name == string(f) || name == strings.TrimPrefix(info.Extension, ".") {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// Entity is a subject with its statements.
type Entity struct {
	URI        string
	Statements []storage.Statement
}

// types returns the rdf:type objects of the entity.
func (e Entity) types() []string {
	var out []string
	for _, st := range e.Statements {
		if st.Predicate == nao.RDFType && st.Object.IsResource() {
			out = append(out, st.Object.Value)
		}
	}
	return out
}

// properties returns the non-type statements grouped by predicate, in
// predicate order.
func (e Entity) properties() ([]string, map[string][]storage.Node) {
	grouped := make(map[string][]storage.Node)
	var predicates []string
	for _, st := range e.Statements {
		if st.Predicate == nao.RDFType && st.Object.IsResource() {
			continue
		}
		if _, ok := grouped[st.Predicate]; !ok {
			predicates = append(predicates, st.Predicate)
		}
		grouped[st.Predicate] = append(grouped[st.Predicate], st.Object)
	}
	sort.Strings(predicates)
	return predicates, grouped
}

// RDFExporter collects statements and serialises them.
type RDFExporter struct {
	prefixes map[string]string
	entities []Entity
	index    map[string]int
	seen     map[string]struct{}
}

// NewRDFExporter creates an exporter with the default prefixes.
func NewRDFExporter() *RDFExporter {
	return &RDFExporter{
		prefixes: defaultPrefixes(),
		index:    make(map[string]int),
		seen:     make(map[string]struct{}),
	}
}

// defaultPrefixes returns the standard RDF namespace prefixes.
func defaultPrefixes() map[string]string {
	out := make(map[string]string, len(nao.Prefixes))
	for k, v := range nao.Prefixes {
		out[k] = v
	}
	return out
}

// SetPrefix adds or replaces a namespace prefix.
func (e *RDFExporter) SetPrefix(prefix, iri string) {
	e.prefixes[prefix] = iri
}

// AddStatements adds statements, grouping them by subject. Duplicates are
// dropped; the named graph is not part of the output.
func (e *RDFExporter) AddStatements(stmts ...storage.Statement) {
	for _, st := range stmts {
		st.Context = ""
		key := st.Key()
		if _, dup := e.seen[key]; dup {
			continue
		}
		e.seen[key] = struct{}{}

		i, ok := e.index[st.Subject]
		if !ok {
			i = len(e.entities)
			e.index[st.Subject] = i
			e.entities = append(e.entities, Entity{URI: st.Subject})
		}
		e.entities[i].Statements = append(e.entities[i].Statements, st)
	}
}

// AddEntity adds an entity. Statements about other subjects are filed under
// their own subject.
func (e *RDFExporter) AddEntity(entity Entity) {
	if _, ok := e.index[entity.URI]; !ok && entity.URI != "" {
		e.index[entity.URI] = len(e.entities)
		e.entities = append(e.entities, Entity{URI: entity.URI})
	}
	e.AddStatements(entity.Statements...)
}

// Len returns the number of entities.
func (e *RDFExporter) Len() int {
	return len(e.entities)
}

// FromStore returns an exporter holding every statement of graph. An empty
// graph exports all graphs.
func FromStore(ctx context.Context, s storage.Store, graph string) (*RDFExporter, error) {
	stmts, err := s.Match(ctx, storage.Pattern{Context: graph})
	if err != nil {
		return nil, fmt.Errorf("read statements: %w", err)
	}
	e := NewRDFExporter()
	e.AddStatements(stmts...)
	return e, nil
}

// Export serializes all entities to the specified format.
func (e *RDFExporter) Export(format Format) (string, error) {
	switch format {
	case FormatTurtle:
		return e.toTurtle(), nil
	case FormatNTriples:
		return e.toNTriples(), nil
	case FormatJSONLD:
		return e.toJSONLD()
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// sorted returns the entities ordered by URI for stable output.
func (e *RDFExporter) sorted() []Entity {
	out := make([]Entity, len(e.entities))
	copy(out, e.entities)
	sort.Slice(out, func(i, j int) bool { return out[i].URI < out[j].URI })
	return out
}

func (e *RDFExporter) toTurtle() string {
	w := NewTurtleWriter(e.prefixes)
	w.WritePrefixes()
	for i, entity := range e.sorted() {
		if i > 0 {
			w.WriteBlank()
		}
		e.writeEntityTurtle(w, entity)
	}
	return w.String()
}

func (e *RDFExporter) writeEntityTurtle(w *TurtleWriter, entity Entity) {
	types := entity.types()
	predicates, grouped := entity.properties()
	if len(types) == 0 && len(predicates) == 0 {
		return
	}

	w.WriteSubject(entity.URI)
	if len(types) > 0 {
		w.WriteTypes(types, len(predicates) == 0)
	}
	for i, p := range predicates {
		w.WritePredicate(p, grouped[p], i == len(predicates)-1)
	}
}

func (e *RDFExporter) toNTriples() string {
	w := NewNTriplesWriter()
	for _, entity := range e.sorted() {
		for _, st := range entity.Statements {
			w.WriteStatement(st)
		}
	}
	return w.String()
}

func (e *RDFExporter) toJSONLD() (string, error) {
	w := NewJSONLDWriter()
	w.SetContext(e.prefixes)
	for _, entity := range e.sorted() {
		types := entity.types()
		compactTypes := make([]string, 0, len(types))
		for _, t := range types {
			compactTypes = append(compactTypes, compact(e.prefixes, t))
		}

		predicates, grouped := entity.properties()
		props := make(map[string]any, len(predicates))
		for _, p := range predicates {
			values := make([]any, 0, len(grouped[p]))
			for _, n := range grouped[p] {
				values = append(values, jsonLDValue(e.prefixes, n))
			}
			if len(values) == 1 {
				props[compact(e.prefixes, p)] = values[0]
			} else {
				props[compact(e.prefixes, p)] = values
			}
		}
		w.AddNode(entity.URI, compactTypes, props)
	}
	return w.Encode()
}

// compact returns iri as prefix:local when a prefix covers it and the local
// part is a valid name, else iri unchanged.
func compact(prefixes map[string]string, iri string) string {
	best, bestNS := "", ""
	for prefix, ns := range prefixes {
		if strings.HasPrefix(iri, ns) && len(ns) > len(bestNS) {
			best, bestNS = prefix, ns
		}
	}
	if bestNS == "" {
		return iri
	}
	local := iri[len(bestNS):]
	if !validLocalName(local) {
		return iri
	}
	return best + ":" + local
}

func validLocalName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9', r == '-':
			if i == 0 && r == '-' {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// jsonLDValue renders a node as a JSON-LD value object. Plain strings stay
// bare.
func jsonLDValue(prefixes map[string]string, n storage.Node) any {
	if n.IsResource() {
		return map[string]string{"@id": n.Value}
	}
	if n.Language != "" {
		return map[string]string{"@value": n.Value, "@language": n.Language}
	}
	if n.Datatype == "" || n.Datatype == nao.XSDString {
		return n.Value
	}
	return map[string]string{"@value": n.Value, "@type": compact(prefixes, n.Datatype)}
}
