package export_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/c360studio/semres/export"
	"github.com/c360studio/semres/storage"
	"github.com/c360studio/semres/vocabulary/nao"
)

const docURI = "nepomuk:/res/3f6c"

func fixture() []storage.Statement {
	return []storage.Statement{
		{Subject: docURI, Predicate: nao.RDFType, Object: storage.NewResourceNode(nao.ClassTag), Context: storage.MainContext},
		{Subject: docURI, Predicate: nao.PrefLabel, Object: storage.NewLiteral("Quarterly \"Report\"", ""), Context: storage.MainContext},
		{Subject: docURI, Predicate: nao.NumericRating, Object: storage.NewLiteral("7", nao.XSDInt), Context: storage.MainContext},
		{Subject: docURI, Predicate: nao.Identifier, Object: storage.NewLiteral("a", ""), Context: storage.MainContext},
		{Subject: docURI, Predicate: nao.Identifier, Object: storage.NewLiteral("b", ""), Context: storage.MainContext},
		{Subject: "file:///home/a.txt", Predicate: nao.IsRelated, Object: storage.NewResourceNode(docURI), Context: storage.MainContext},
	}
}

func newExporter() *export.RDFExporter {
	e := export.NewRDFExporter()
	e.AddStatements(fixture()...)
	return e
}

func TestAddStatementsGroupsBySubject(t *testing.T) {
	e := newExporter()
	if e.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", e.Len())
	}

	// Duplicates across graphs collapse.
	e.AddStatements(storage.Statement{Subject: docURI, Predicate: nao.Identifier, Object: storage.NewLiteral("a", ""), Context: "urn:graph:other"})
	out, err := e.Export(export.FormatNTriples)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if got := strings.Count(out, "\"a\""); got != 1 {
		t.Errorf("identifier written %d times, want 1", got)
	}
}

func TestExportTurtle(t *testing.T) {
	output, err := newExporter().Export(export.FormatTurtle)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	for _, want := range []string{
		"@prefix nao: <" + nao.Namespace + "> .",
		"<" + docURI + ">",
		"a nao:Tag ;",
		`nao:prefLabel "Quarterly \"Report\""`,
		`nao:numericRating "7"^^xsd:int`,
		`nao:identifier "a", "b"`,
		"nao:isRelated <" + docURI + "> .",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("Turtle output missing %q:\n%s", want, output)
		}
	}

	// Subjects are sorted, so the file resource comes first.
	if strings.Index(output, "<file:///home/a.txt>") > strings.Index(output, "<"+docURI+">\n") {
		t.Error("subjects should be written in URI order")
	}
}

func TestExportNTriples(t *testing.T) {
	output, err := newExporter().Export(export.FormatNTriples)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) != len(fixture()) {
		t.Fatalf("got %d lines, want %d", len(lines), len(fixture()))
	}
	for _, line := range lines {
		if !strings.HasSuffix(line, " .") {
			t.Errorf("N-Triples line should end with ' .': %s", line)
		}
		if strings.Contains(line, storage.MainContext+">") {
			t.Errorf("N-Triples line should not carry the graph: %s", line)
		}
	}
	want := "<" + docURI + "> <" + nao.NumericRating + "> \"7\"^^<" + nao.XSDInt + "> ."
	if !strings.Contains(output, want) {
		t.Errorf("missing typed literal line %q", want)
	}
}

func TestExportJSONLD(t *testing.T) {
	output, err := newExporter().Export(export.FormatJSONLD)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	doc, err := export.ParseJSONLD([]byte(output))
	if err != nil {
		t.Fatalf("output is not valid JSON-LD: %v", err)
	}
	if doc.Context["nao"] != nao.Namespace {
		t.Errorf("@context nao = %v", doc.Context["nao"])
	}
	if len(doc.Graph) != 2 {
		t.Fatalf("graph has %d nodes, want 2", len(doc.Graph))
	}

	var node export.JSONLDNode
	for _, n := range doc.Graph {
		if n.ID == docURI {
			node = n
		}
	}
	if len(node.Type) != 1 || node.Type[0] != "nao:Tag" {
		t.Errorf("@type = %v, want [nao:Tag]", node.Type)
	}
	if node.Properties["nao:prefLabel"] != `Quarterly "Report"` {
		t.Errorf("prefLabel = %v", node.Properties["nao:prefLabel"])
	}
	ids, ok := node.Properties["nao:identifier"].([]any)
	if !ok || len(ids) != 2 {
		t.Errorf("identifier = %v, want two values", node.Properties["nao:identifier"])
	}
	rating, ok := node.Properties["nao:numericRating"].(map[string]any)
	if !ok || rating["@value"] != "7" || rating["@type"] != "xsd:int" {
		t.Errorf("numericRating = %v", node.Properties["nao:numericRating"])
	}
}

func TestJSONLDNodeRoundTrip(t *testing.T) {
	in := export.JSONLDNode{ID: "urn:x", Type: []string{"nao:Tag"}, Properties: map[string]any{"nao:prefLabel": "x"}}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	var out export.JSONLDNode
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out.ID != in.ID || out.Type[0] != "nao:Tag" || out.Properties["nao:prefLabel"] != "x" {
		t.Errorf("round trip = %+v", out)
	}
}

func TestUnsupportedFormat(t *testing.T) {
	_, err := export.NewRDFExporter().Export("rdfxml")
	if !errors.Is(err, export.ErrUnsupportedFormat) {
		t.Errorf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want export.Format
	}{
		{"turtle", export.FormatTurtle},
		{"TTL", export.FormatTurtle},
		{"nt", export.FormatNTriples},
		{" jsonld ", export.FormatJSONLD},
	}
	for _, tt := range tests {
		got, err := export.ParseFormat(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
	if _, err := export.ParseFormat("xml"); !errors.Is(err, export.ErrUnsupportedFormat) {
		t.Errorf("ParseFormat(xml) err = %v", err)
	}
}

func TestFromStore(t *testing.T) {
	ctx := context.Background()
	s, err := storage.NewMemStore()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.Add(ctx, fixture()...); err != nil {
		t.Fatal(err)
	}
	if err := s.Add(ctx, storage.Statement{Subject: "urn:elsewhere", Predicate: nao.PrefLabel, Object: storage.NewLiteral("x", ""), Context: "urn:graph:other"}); err != nil {
		t.Fatal(err)
	}

	e, err := export.FromStore(ctx, s, storage.MainContext)
	if err != nil {
		t.Fatalf("FromStore failed: %v", err)
	}
	if e.Len() != 2 {
		t.Errorf("Len() = %d, want 2", e.Len())
	}

	all, err := export.FromStore(ctx, s, "")
	if err != nil {
		t.Fatalf("FromStore failed: %v", err)
	}
	if all.Len() != 3 {
		t.Errorf("Len() = %d, want 3", all.Len())
	}
}

func TestGetFormatInfo(t *testing.T) {
	info, ok := export.GetFormatInfo(export.FormatTurtle)
	if !ok || info.MIMEType != "text/turtle" {
		t.Errorf("GetFormatInfo(turtle) = %+v, %v", info, ok)
	}
	if _, ok := export.GetFormatInfo("unknown"); ok {
		t.Error("unknown format should not have info")
	}
}
