package resource_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/c360studio/semres/resource"
	"github.com/c360studio/semres/storage"
	"github.com/c360studio/semres/variant"
	"github.com/c360studio/semres/vocabulary/nao"
)

func objects(t *testing.T, s storage.Store, subject, predicate string) []string {
	t.Helper()
	stmts, err := s.Match(context.Background(), storage.Pattern{Subject: subject, Predicate: predicate})
	require.NoError(t, err)
	out := make([]string, 0, len(stmts))
	for _, st := range stmts {
		out = append(out, st.Object.Value)
	}
	return out
}

func TestSyncWritesMergedState(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	put(t, s, "urn:r", nao.PrefLabel, lit("old"))
	put(t, s, "urn:r", nao.Description, lit("desc"))
	put(t, s, "urn:r", nao.RDFType, storage.NewResourceNode(document))

	obs := &recordingObserver{}
	m := resource.NewManager(s, resource.WithSyncObserver(obs))
	r := m.Resource("urn:r", textDoc)
	defer r.Release()

	require.NoError(t, r.SetLabel("new"))
	require.NoError(t, r.SetRating(8))
	assert.True(t, r.Modified())

	require.NoError(t, r.Sync(ctx))
	assert.False(t, r.Modified())

	assert.Equal(t, []string{"new"}, objects(t, s, "urn:r", nao.PrefLabel))
	assert.Equal(t, []string{"desc"}, objects(t, s, "urn:r", nao.Description))
	assert.Equal(t, []string{"8"}, objects(t, s, "urn:r", nao.NumericRating))
	assert.ElementsMatch(t, []string{document, textDoc}, objects(t, s, "urn:r", nao.RDFType))

	require.Contains(t, obs.synced, "urn:r")
	assert.Len(t, obs.synced["urn:r"], 5)

	types, err := r.Types(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{document, textDoc}, types)
}

func TestSyncListValues(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	m := resource.NewManager(s)

	r := m.Resource("urn:r", "")
	defer r.Release()
	require.NoError(t, r.SetProperty(nao.Identifier, variant.NewStringList("a", "b")))
	require.NoError(t, r.AddIdentifier(ctx, "c"))
	require.NoError(t, r.AddIdentifier(ctx, "a"))
	require.NoError(t, r.Sync(ctx))

	assert.ElementsMatch(t, []string{"a", "b", "c"}, objects(t, s, "urn:r", nao.Identifier))

	fresh := resource.NewManager(s)
	again := fresh.Resource("urn:r", "")
	defer again.Release()
	ids, err := again.Identifiers(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, ids)
}

func TestSyncNewIdentifierPersistsKickoff(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	m := resource.NewManager(s, resource.WithOntology(testOntology()))

	r := m.Resource("quarterly report", document)
	uri, err := r.URI(ctx)
	require.NoError(t, err)
	require.NoError(t, r.Sync(ctx))
	r.Release()

	// A second manager finds the resource through its identifier.
	other := resource.NewManager(s, resource.WithOntology(testOntology()))
	again := other.Resource("quarterly report", textDoc)
	defer again.Release()
	got, err := again.URI(ctx)
	require.NoError(t, err)
	assert.Equal(t, uri, got)
}

func TestSyncFailureKeepsEdits(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	var rec errorRecorder
	m := resource.NewManager(s)
	m.OnError(rec.handle)

	r := m.Resource("urn:r", "")
	defer r.Release()
	_, err := r.URI(ctx)
	require.NoError(t, err)
	require.NoError(t, r.SetLabel("pending"))

	s.fail.Store(true)
	err = r.Sync(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, resource.ErrCommunication)
	assert.True(t, r.Modified())
	assert.Equal(t, []resource.ErrorCode{resource.ErrorCommunication}, rec.codes())

	s.fail.Store(false)
	require.NoError(t, r.Sync(ctx))
	assert.False(t, r.Modified())
	assert.Equal(t, []string{"pending"}, objects(t, s, "urn:r", nao.PrefLabel))
}

func TestManagerSyncFlushesDirtyRecords(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	m := resource.NewManager(s)

	var handles []*resource.Resource
	for _, uri := range []string{"urn:a", "urn:b", "urn:c"} {
		r := m.Resource(uri, "")
		require.NoError(t, r.SetLabel(uri))
		handles = append(handles, r)
	}
	clean := m.Resource("urn:clean", "")
	handles = append(handles, clean)
	defer func() {
		for _, h := range handles {
			h.Release()
		}
	}()

	require.NoError(t, m.Sync(ctx))
	for _, uri := range []string{"urn:a", "urn:b", "urn:c"} {
		assert.Equal(t, []string{uri}, objects(t, s, uri, nao.PrefLabel))
	}
	assert.Empty(t, objects(t, s, "urn:clean", ""))

	for _, h := range handles {
		assert.False(t, h.Modified())
	}

	require.NoError(t, handles[0].SetLabel("again"))
	s.fail.Store(true)
	err := m.Sync(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, resource.ErrCommunication)
}

func TestReleaseWithoutAutoSyncDropsEdits(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	m := resource.NewManager(s)

	r := m.Resource("urn:r", "")
	require.NoError(t, r.SetLabel("unsynced"))
	r.Release()
	assert.Equal(t, 0, m.Stats().Records)

	again := m.Resource("urn:r", "")
	defer again.Release()
	label, err := again.Label(ctx)
	require.NoError(t, err)
	assert.Empty(t, label)
}

func TestReleaseWithAutoSyncKeepsDirtyRecord(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	m := resource.NewManager(s, resource.WithAutoSync(true))

	r := m.Resource("urn:r", "")
	require.NoError(t, r.SetLabel("keep me"))
	r.Release()
	assert.Equal(t, 1, m.Stats().Records)

	require.NoError(t, m.Sync(ctx))
	assert.Equal(t, []string{"keep me"}, objects(t, s, "urn:r", nao.PrefLabel))
	assert.Equal(t, 0, m.Stats().Records)
}

func TestAutoSyncLoop(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	s := newStore(t)
	m := resource.NewManager(s, resource.WithAutoSync(true))
	m.StartAutoSync(ctx, 10*time.Millisecond)
	m.StartAutoSync(ctx, 10*time.Millisecond)

	r := m.Resource("urn:r", "")
	require.NoError(t, r.SetLabel("flushed"))
	r.Release()

	assert.Eventually(t, func() bool {
		stmts, err := s.Match(ctx, storage.Pattern{Subject: "urn:r", Predicate: nao.PrefLabel})
		return err == nil && len(stmts) == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		return m.Stats().Records == 0
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, m.Close())
}

func TestCloseFlushesWithAutoSync(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := newStore(t)
	m := resource.NewManager(s, resource.WithAutoSync(true))
	m.StartAutoSync(context.Background(), time.Hour)

	r := m.Resource("urn:r", "")
	require.NoError(t, r.SetDescription("written on close"))
	r.Release()

	require.NoError(t, m.Close())
	assert.Equal(t, []string{"written on close"}, objects(t, s, "urn:r", nao.Description))
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	put(t, s, "urn:r", nao.PrefLabel, lit("doomed"))
	put(t, s, "urn:other", nao.IsRelated, storage.NewResourceNode("urn:r"))

	m := resource.NewManager(s)
	r := m.Resource("urn:r", "")
	defer r.Release()

	require.NoError(t, r.Remove(ctx))

	exists, err := r.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)

	props, err := r.Properties(ctx)
	require.NoError(t, err)
	assert.Empty(t, props)
	assert.Empty(t, objects(t, s, "urn:other", nao.IsRelated))
}

func TestSyncKeepsUntouchedStatements(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	german := storage.Node{Kind: storage.NodeLiteral, Value: "Hallo", Language: "de"}
	count := storage.NewLiteral("5", nao.XSDInteger)
	price := storage.NewLiteral("9.50", nao.XSDDecimal)
	put(t, s, "urn:r", nao.PrefLabel, german)
	put(t, s, "urn:r", "urn:p:count", count)
	put(t, s, "urn:r", "urn:p:price", price)
	put(t, s, "urn:r", "urn:p:mixed", storage.NewResourceNode("urn:y"))
	put(t, s, "urn:r", "urn:p:mixed", lit("free"))

	m := resource.NewManager(s)
	r := m.Resource("urn:r", "")
	defer r.Release()

	require.NoError(t, r.SetDescription("edited elsewhere"))
	require.NoError(t, r.Sync(ctx))

	nodes := func(predicate string) []storage.Node {
		stmts, err := s.Match(ctx, storage.Pattern{Subject: "urn:r", Predicate: predicate})
		require.NoError(t, err)
		out := make([]storage.Node, 0, len(stmts))
		for _, st := range stmts {
			out = append(out, st.Object)
		}
		return out
	}
	assert.Equal(t, []storage.Node{german}, nodes(nao.PrefLabel))
	assert.Equal(t, []storage.Node{count}, nodes("urn:p:count"))
	assert.Equal(t, []storage.Node{price}, nodes("urn:p:price"))
	assert.ElementsMatch(t, []storage.Node{storage.NewResourceNode("urn:y"), lit("free")}, nodes("urn:p:mixed"))
	assert.Equal(t, []string{"edited elsewhere"}, objects(t, s, "urn:r", nao.Description))

	// A second sync after a fresh load still leaves them alone.
	require.NoError(t, r.SetLabel("Hello"))
	require.NoError(t, r.Sync(ctx))
	assert.Equal(t, []storage.Node{count}, nodes("urn:p:count"))
	assert.ElementsMatch(t, []storage.Node{storage.NewResourceNode("urn:y"), lit("free")}, nodes("urn:p:mixed"))
	assert.Equal(t, []string{"Hello"}, objects(t, s, "urn:r", nao.PrefLabel))
}

func TestRemoveSurvivesSync(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	put(t, s, "urn:x", nao.PrefLabel, lit("doomed"))

	m := resource.NewManager(s)
	r := m.Resource("urn:x", "")
	defer r.Release()

	require.NoError(t, r.Remove(ctx))
	require.NoError(t, r.Sync(ctx))

	exists, err := r.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, exists, "sync must not write a removed resource back")

	// Edits made after the removal bring it back.
	require.NoError(t, r.SetLabel("reborn"))
	require.NoError(t, r.Sync(ctx))
	exists, err = r.Exists(ctx)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, []string{"reborn"}, objects(t, s, "urn:x", nao.PrefLabel))
}
