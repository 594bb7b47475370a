package ontology_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semres/ontology"
	"github.com/c360studio/semres/storage"
	"github.com/c360studio/semres/vocabulary/nao"
)

const (
	nfo       = "http://www.semanticdesktop.org/ontologies/2007/03/22/nfo#"
	document  = nfo + "Document"
	textDoc   = nfo + "TextDocument"
	fileClass = nfo + "FileDataObject"
)

func testModel() *ontology.Model {
	m := ontology.Default()
	m.AddSubClass(document, nao.ClassInformationElement)
	m.AddSubClass(textDoc, document)
	m.AddSubClass(fileClass, nao.ClassDataObject)
	return m
}

func TestIsSubClassOf(t *testing.T) {
	m := testModel()

	assert.True(t, m.IsSubClassOf(textDoc, document))
	assert.True(t, m.IsSubClassOf(textDoc, nao.ClassInformationElement))
	assert.True(t, m.IsSubClassOf(textDoc, nao.RDFSResource))
	assert.False(t, m.IsSubClassOf(document, textDoc))
	assert.False(t, m.IsSubClassOf(document, document))
	assert.False(t, m.IsSubClassOf(textDoc, fileClass))
}

func TestCompatible(t *testing.T) {
	m := testModel()

	assert.True(t, m.Compatible(textDoc, document))
	assert.True(t, m.Compatible(document, textDoc))
	assert.True(t, m.Compatible(document, ""))
	assert.True(t, m.Compatible(nao.RDFSResource, fileClass))
	assert.False(t, m.Compatible(textDoc, fileClass))
}

func TestMoreSpecific(t *testing.T) {
	m := testModel()

	assert.Equal(t, textDoc, m.MoreSpecific(document, textDoc))
	assert.Equal(t, textDoc, m.MoreSpecific(textDoc, document))
	assert.Equal(t, document, m.MoreSpecific("", document))
	assert.Equal(t, textDoc, m.MoreSpecific(textDoc, fileClass))
}

func TestSuperclasses(t *testing.T) {
	m := testModel()
	assert.Equal(t,
		[]string{nao.ClassInformationElement, document, nao.RDFSResource},
		m.Superclasses(textDoc))
	assert.Empty(t, m.Superclasses("urn:unknown"))
}

func TestCycleTolerated(t *testing.T) {
	m := ontology.New()
	m.AddSubClass("urn:a", "urn:b")
	m.AddSubClass("urn:b", "urn:a")

	assert.True(t, m.IsSubClassOf("urn:a", "urn:b"))
	assert.True(t, m.IsSubClassOf("urn:b", "urn:a"))
	assert.Equal(t, []string{"urn:b"}, m.Superclasses("urn:a"))
}

func TestCacheResetOnChange(t *testing.T) {
	m := testModel()
	require.False(t, m.IsSubClassOf(fileClass, nao.ClassInformationElement))

	m.AddSubClass(nao.ClassDataObject, nao.ClassInformationElement)
	assert.True(t, m.IsSubClassOf(fileClass, nao.ClassInformationElement))

	m.Replace(map[string][]string{"urn:x": {"urn:y"}})
	assert.False(t, m.Has(document))
	assert.True(t, m.IsSubClassOf("urn:x", "urn:y"))
	assert.Equal(t, 2, m.Len())
}

func TestConcurrentLookups(t *testing.T) {
	m := testModel()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%8 == 0 {
				m.AddSubClass("urn:extra", document)
			}
			assert.True(t, m.IsSubClassOf(textDoc, nao.ClassInformationElement))
		}(i)
	}
	wg.Wait()
}

func TestParse(t *testing.T) {
	hierarchy, err := ontology.Parse([]byte(`
prefixes:
  nfo: ` + nfo + `
classes:
  nfo:TextDocument: [nfo:Document]
  nfo:Document: [nie:InformationElement]
  http://example.org/Thing: []
`))
	require.NoError(t, err)
	assert.Equal(t, []string{document}, hierarchy[textDoc])
	assert.Equal(t, []string{nao.ClassInformationElement}, hierarchy[document])
	assert.Contains(t, hierarchy, "http://example.org/Thing")

	_, err = ontology.Parse([]byte("classes:\n  foo:Bar: [nao:Tag]\n"))
	assert.ErrorIs(t, err, ontology.ErrUnknownPrefix)
}

func TestFromStore(t *testing.T) {
	ctx := context.Background()
	s, err := storage.NewMemStore()
	require.NoError(t, err)

	require.NoError(t, s.Add(ctx,
		storage.Statement{Subject: textDoc, Predicate: nao.RDFSSubClassOf, Object: storage.NewResourceNode(document), Context: storage.MainContext},
		storage.Statement{Subject: document, Predicate: nao.RDFSSubClassOf, Object: storage.NewResourceNode(nao.ClassInformationElement), Context: storage.MainContext},
	))

	m := ontology.New()
	n, err := ontology.FromStore(ctx, s, m)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, m.IsSubClassOf(textDoc, nao.ClassInformationElement))
}

func TestWatcherReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ontology.yaml")
	require.NoError(t, os.WriteFile(path, []byte("classes:\n  http://example.org/A: [http://example.org/B]\n"), 0o644))

	m := ontology.New()
	w, err := ontology.NewWatcher(path, m, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	assert.True(t, m.IsSubClassOf("http://example.org/A", "http://example.org/B"))

	require.NoError(t, os.WriteFile(path, []byte("classes:\n  http://example.org/A: [http://example.org/C]\n"), 0o644))
	assert.Eventually(t, func() bool {
		return m.IsSubClassOf("http://example.org/A", "http://example.org/C")
	}, 5*time.Second, 50*time.Millisecond)
	assert.False(t, m.IsSubClassOf("http://example.org/A", "http://example.org/B"))
}

func TestWatcherMissingFile(t *testing.T) {
	w, err := ontology.NewWatcher(filepath.Join(t.TempDir(), "missing.yaml"), ontology.New(), nil)
	require.NoError(t, err)
	assert.Error(t, w.Start(context.Background()))
}

func TestWatcherStopWithoutStart(t *testing.T) {
	w, err := ontology.NewWatcher(filepath.Join(t.TempDir(), "ontology.yaml"), ontology.New(), nil)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- w.Stop() }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Stop blocked on a watcher that never started")
	}
}

func TestWatcherStopAfterFailedStart(t *testing.T) {
	w, err := ontology.NewWatcher(filepath.Join(t.TempDir(), "missing.yaml"), ontology.New(), nil)
	require.NoError(t, err)
	require.Error(t, w.Start(context.Background()))

	done := make(chan struct{})
	go func() {
		_ = w.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop blocked after a failed Start")
	}
}
