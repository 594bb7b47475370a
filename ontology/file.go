package ontology

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/c360studio/semres/storage"
	"github.com/c360studio/semres/vocabulary/nao"
)

// ErrUnknownPrefix is returned when a class name uses an undeclared prefix.
var ErrUnknownPrefix = errors.New("unknown prefix")

// File is the YAML representation of a class hierarchy:
//
//	prefixes:
//	  nfo: http://www.semanticdesktop.org/ontologies/2007/03/22/nfo#
//	classes:
//	  nfo:Document: [nie:InformationElement]
//
// The nao, nie, rdf, rdfs and xsd prefixes are always available.
type File struct {
	Prefixes map[string]string   `yaml:"prefixes,omitempty"`
	Classes  map[string][]string `yaml:"classes"`
}

// LoadFile parses the hierarchy stored at path.
func LoadFile(path string) (map[string][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ontology file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML hierarchy and expands prefixed names.
func Parse(data []byte) (map[string][]string, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse ontology file: %w", err)
	}

	prefixes := make(map[string]string, len(nao.Prefixes)+len(f.Prefixes))
	for p, ns := range nao.Prefixes {
		prefixes[p] = ns
	}
	for p, ns := range f.Prefixes {
		prefixes[p] = ns
	}

	out := make(map[string][]string, len(f.Classes))
	for child, parents := range f.Classes {
		c, err := expand(child, prefixes)
		if err != nil {
			return nil, err
		}
		for _, parent := range parents {
			p, err := expand(parent, prefixes)
			if err != nil {
				return nil, err
			}
			out[c] = append(out[c], p)
		}
		if _, ok := out[c]; !ok {
			out[c] = nil
		}
	}
	return out, nil
}

// expand turns "prefix:Local" into a full IRI. Names containing "://" or
// without a colon are returned unchanged.
func expand(name string, prefixes map[string]string) (string, error) {
	if strings.Contains(name, "://") {
		return name, nil
	}
	prefix, local, ok := strings.Cut(name, ":")
	if !ok {
		return name, nil
	}
	ns, ok := prefixes[prefix]
	if !ok {
		return "", fmt.Errorf("%w %q in %q", ErrUnknownPrefix, prefix, name)
	}
	return ns + local, nil
}

// FromStore adds every rdfs:subClassOf statement found in s to m.
func FromStore(ctx context.Context, s storage.Store, m *Model) (int, error) {
	stmts, err := s.Match(ctx, storage.Pattern{Predicate: nao.RDFSSubClassOf})
	if err != nil {
		return 0, fmt.Errorf("match subclass statements: %w", err)
	}
	n := 0
	for _, st := range stmts {
		if !st.Object.IsResource() {
			continue
		}
		m.AddSubClass(st.Subject, st.Object.Value)
		n++
	}
	return n, nil
}
