// Package graph publishes synced resources to the knowledge graph.
package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/c360studio/semstreams/message"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360studio/semres/storage"
	"github.com/c360studio/semres/variant"
	"github.com/c360studio/semres/vocabulary/nao"
)

// GraphIngestSubject is the subject entities are published on.
const GraphIngestSubject = "graph.ingest.entity"

// Source identifies semres as the producer of published triples.
const Source = "semres.sync"

// Publisher publishes every synced resource as an entity payload. It
// satisfies resource.SyncObserver.
type Publisher struct {
	js      jetstream.JetStream
	subject string
	logger  *slog.Logger
	now     func() time.Time
}

// NewPublisher creates a publisher. An empty subject means GraphIngestSubject.
func NewPublisher(js jetstream.JetStream, subject string, logger *slog.Logger) *Publisher {
	if subject == "" {
		subject = GraphIngestSubject
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{js: js, subject: subject, logger: logger, now: time.Now}
}

// ResourceSynced publishes the statements written for uri.
func (p *Publisher) ResourceSynced(ctx context.Context, uri string, stmts []storage.Statement) error {
	if p.js == nil {
		return nil // Skip publishing if no JetStream (graceful degradation)
	}

	payload := BuildPayload(uri, stmts, p.now())
	if err := payload.Validate(); err != nil {
		return fmt.Errorf("validate entity: %w", err)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal resource entity: %w", err)
	}

	if _, err := p.js.Publish(ctx, p.subject, data); err != nil {
		return fmt.Errorf("publish resource entity: %w", err)
	}

	p.logger.Debug("Published resource entity", "uri", uri, "entity_id", payload.EntityID_, "triples", len(payload.TripleData))
	return nil
}

// BuildPayload converts the statements of uri into an entity payload.
// Predicates with a registered dotted name use it; others keep their IRI.
func BuildPayload(uri string, stmts []storage.Statement, now time.Time) *EntityPayload {
	entityID := EntityID(uri)
	triples := make([]message.Triple, 0, len(stmts))
	for _, st := range stmts {
		predicate, ok := nao.DottedName(st.Predicate)
		if !ok {
			predicate = st.Predicate
		}
		triples = append(triples, message.Triple{
			Subject:    entityID,
			Predicate:  predicate,
			Object:     objectValue(st.Object),
			Source:     Source,
			Timestamp:  now,
			Confidence: 1.0,
		})
	}

	return &EntityPayload{
		EntityID_:  entityID,
		URI:        uri,
		TripleData: triples,
		UpdatedAt:  now,
	}
}

// objectValue returns the native Go value of a statement object. Resources
// keep their URI.
func objectValue(n storage.Node) any {
	if n.IsResource() {
		return n.Value
	}
	v := variant.FromNode(n)
	switch v.Kind() {
	case variant.Int:
		return v.ToInt()
	case variant.Double:
		return v.ToDouble()
	case variant.Bool:
		return v.ToBool()
	default:
		return v.ToString()
	}
}

// EntityID generates a stable entity ID for a resource URI.
// Format: semres.local.nepomuk.resource.resource.<uuid-v5 of the URI>
func EntityID(uri string) string {
	return fmt.Sprintf("semres.local.nepomuk.resource.resource.%s", uuid.NewSHA1(uuid.NameSpaceURL, []byte(uri)))
}
