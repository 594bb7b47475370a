package graph_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semres/graph"
	"github.com/c360studio/semres/resource"
	"github.com/c360studio/semres/storage"
	"github.com/c360studio/semres/testutil"
	"github.com/c360studio/semres/vocabulary/nao"
)

func TestEntityIDStable(t *testing.T) {
	a := graph.EntityID("nepomuk:/res/1")
	assert.Equal(t, a, graph.EntityID("nepomuk:/res/1"))
	assert.NotEqual(t, a, graph.EntityID("nepomuk:/res/2"))
	assert.Regexp(t, `^semres\.local\.nepomuk\.resource\.resource\.[0-9a-f-]{36}$`, a)
}

func TestBuildPayload(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	stmts := []storage.Statement{
		{Subject: "urn:r", Predicate: nao.RDFType, Object: storage.NewResourceNode(nao.ClassTag)},
		{Subject: "urn:r", Predicate: nao.NumericRating, Object: storage.NewLiteral("7", nao.XSDInt)},
		{Subject: "urn:r", Predicate: "urn:custom", Object: storage.NewLiteral("x", "")},
	}

	p := graph.BuildPayload("urn:r", stmts, now)
	require.NoError(t, p.Validate())
	assert.Equal(t, graph.EntityID("urn:r"), p.EntityID())
	require.Len(t, p.Triples(), 3)

	assert.Equal(t, nao.PredicateType, p.Triples()[0].Predicate)
	assert.Equal(t, nao.ClassTag, p.Triples()[0].Object)
	assert.Equal(t, nao.PredicateRating, p.Triples()[1].Predicate)
	assert.Equal(t, int64(7), p.Triples()[1].Object)
	assert.Equal(t, "urn:custom", p.Triples()[2].Predicate)
	for _, tr := range p.Triples() {
		assert.Equal(t, graph.Source, tr.Source)
		assert.Equal(t, now, tr.Timestamp)
	}
	assert.Equal(t, graph.EntityType, p.Schema())
}

func TestPayloadValidate(t *testing.T) {
	assert.Error(t, (&graph.EntityPayload{}).Validate())
	assert.Error(t, (&graph.EntityPayload{EntityID_: "x"}).Validate())
}

func TestPublisherNilJetStream(t *testing.T) {
	p := graph.NewPublisher(nil, "", nil)
	assert.NoError(t, p.ResourceSynced(context.Background(), "urn:r", nil))
}

func TestPublisherPublishesSyncedResource(t *testing.T) {
	ctx := context.Background()
	n := testutil.StartNATS(t)

	stream, err := n.JS.CreateStream(ctx, jetstream.StreamConfig{
		Name:     "GRAPH",
		Subjects: []string{"graph.ingest.>"},
	})
	require.NoError(t, err)

	mem, err := storage.NewMemStore()
	require.NoError(t, err)
	m := resource.NewManager(mem, resource.WithSyncObserver(graph.NewPublisher(n.JS, "", nil)))

	r := m.Resource("urn:published", "")
	defer r.Release()
	require.NoError(t, r.SetLabel("hello graph"))
	require.NoError(t, r.Sync(ctx))

	msg, err := stream.GetLastMsgForSubject(ctx, graph.GraphIngestSubject)
	require.NoError(t, err)

	var payload graph.EntityPayload
	require.NoError(t, json.Unmarshal(msg.Data, &payload))
	assert.Equal(t, "urn:published", payload.URI)
	assert.Equal(t, graph.EntityID("urn:published"), payload.EntityID())

	var labels []any
	for _, tr := range payload.Triples() {
		if tr.Predicate == nao.PredicatePrefLabel {
			labels = append(labels, tr.Object)
		}
	}
	assert.Equal(t, []any{"hello graph"}, labels)
}
