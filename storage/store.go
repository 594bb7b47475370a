// Package storage provides the triple store semres resources are persisted in.
//
// A Store only knows how to match, add and remove statements. The helpers in this
// file build the resource level queries (existence, identifier lookup, load and
// replace) on top of any Store, so every backend behaves identically.
package storage

import (
	"context"
	"fmt"
	"sort"

	"github.com/c360studio/semres/vocabulary/nao"
)

// Store is a triple store.
type Store interface {
	// Match returns all statements matching the pattern.
	Match(ctx context.Context, p Pattern) ([]Statement, error)

	// Add stores statements. Adding an existing statement is a no-op.
	Add(ctx context.Context, stmts ...Statement) error

	// RemoveMatching deletes all statements matching the pattern and returns
	// how many were removed.
	RemoveMatching(ctx context.Context, p Pattern) (int, error)

	// Close releases resources held by the store.
	Close() error
}

// Candidate is a resource found through an identifier lookup.
type Candidate struct {
	URI   string
	Types []string
}

// Contains reports whether uri occurs as the subject or the object of any statement.
func Contains(ctx context.Context, s Store, uri string) (bool, error) {
	stmts, err := s.Match(ctx, Pattern{Subject: uri, Limit: 1})
	if err != nil {
		return false, fmt.Errorf("match subject: %w", err)
	}
	if len(stmts) > 0 {
		return true, nil
	}

	obj := NewResourceNode(uri)
	stmts, err = s.Match(ctx, Pattern{Object: &obj, Limit: 1})
	if err != nil {
		return false, fmt.Errorf("match object: %w", err)
	}
	return len(stmts) > 0, nil
}

// FindByIdentifier returns every resource carrying id as nao:identifier, with
// the types stored for it. Candidates are ordered by URI.
func FindByIdentifier(ctx context.Context, s Store, id string) ([]Candidate, error) {
	obj := NewLiteral(id, nao.XSDString)
	stmts, err := s.Match(ctx, Pattern{Predicate: nao.Identifier, Object: &obj})
	if err != nil {
		return nil, fmt.Errorf("match identifier: %w", err)
	}

	uris := subjectsOf(stmts)
	candidates := make([]Candidate, 0, len(uris))
	for _, uri := range uris {
		types, err := Types(ctx, s, uri)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, Candidate{URI: uri, Types: types})
	}
	return candidates, nil
}

// Types returns the rdf:type values stored for uri.
func Types(ctx context.Context, s Store, uri string) ([]string, error) {
	stmts, err := s.Match(ctx, Pattern{Subject: uri, Predicate: nao.RDFType})
	if err != nil {
		return nil, fmt.Errorf("match types: %w", err)
	}
	types := make([]string, 0, len(stmts))
	for _, st := range stmts {
		if st.Object.IsResource() {
			types = append(types, st.Object.Value)
		}
	}
	sort.Strings(types)
	return types, nil
}

// Load returns all statements with uri as subject.
func Load(ctx context.Context, s Store, uri string) ([]Statement, error) {
	stmts, err := s.Match(ctx, Pattern{Subject: uri})
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", uri, err)
	}
	return stmts, nil
}

// Replace removes every statement of uri in graph and adds stmts. The two steps
// are not atomic: a reader may observe the resource without statements.
func Replace(ctx context.Context, s Store, uri, graph string, stmts []Statement) error {
	for _, st := range stmts {
		if st.Subject != uri {
			return fmt.Errorf("%w: subject %s does not match %s", ErrInvalidStatement, st.Subject, uri)
		}
		if err := st.Validate(); err != nil {
			return err
		}
	}

	if _, err := s.RemoveMatching(ctx, Pattern{Subject: uri, Context: graph}); err != nil {
		return fmt.Errorf("remove statements: %w", err)
	}
	if len(stmts) == 0 {
		return nil
	}
	if err := s.Add(ctx, stmts...); err != nil {
		return fmt.Errorf("add statements: %w", err)
	}
	return nil
}

// RemoveResource deletes all statements that have uri as subject or object.
func RemoveResource(ctx context.Context, s Store, uri string) error {
	if _, err := s.RemoveMatching(ctx, Pattern{Subject: uri}); err != nil {
		return fmt.Errorf("remove subject statements: %w", err)
	}
	obj := NewResourceNode(uri)
	if _, err := s.RemoveMatching(ctx, Pattern{Object: &obj}); err != nil {
		return fmt.Errorf("remove object statements: %w", err)
	}
	return nil
}

// Subjects returns the distinct subjects having object as value of predicate.
func Subjects(ctx context.Context, s Store, predicate string, object Node) ([]string, error) {
	stmts, err := s.Match(ctx, Pattern{Predicate: predicate, Object: &object})
	if err != nil {
		return nil, fmt.Errorf("match subjects: %w", err)
	}
	return subjectsOf(stmts), nil
}

func subjectsOf(stmts []Statement) []string {
	seen := make(map[string]struct{}, len(stmts))
	out := make([]string, 0, len(stmts))
	for _, st := range stmts {
		if _, ok := seen[st.Subject]; ok {
			continue
		}
		seen[st.Subject] = struct{}{}
		out = append(out, st.Subject)
	}
	sort.Strings(out)
	return out
}

// dedupe removes duplicate statements, keeping the first occurrence.
func dedupe(stmts []Statement) []Statement {
	seen := make(map[string]struct{}, len(stmts))
	out := stmts[:0:0]
	for _, st := range stmts {
		k := st.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, st)
	}
	return out
}
