package defgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/defview/defgraph/errors"
)

func corpus() fstest.MapFS {
	return fstest.MapFS{
		"Core/bases.xml": {Data: []byte(`<Defs>
			<ThingDef Name="BuildingBase" Abstract="True">
				<category>Building</category>
				<statBases>
					<Flammability>1.0</Flammability>
				</statBases>
			</ThingDef>
		</Defs>`)},
		"Core/things.xml": {Data: []byte(`<Defs>
			<ThingDef><defName>Steel</defName><label>steel</label></ThingDef>
			<ThingDef ParentName="BuildingBase">
				<defName>Wall</defName>
				<label>wall</label>
				<statBases>
					<MaxHitPoints>300</MaxHitPoints>
				</statBases>
				<costList><Steel>5</Steel></costList>
			</ThingDef>
		</Defs>`)},
	}
}

func TestLoadEndToEnd(t *testing.T) {
	g, err := Load(corpus(), ".")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if g.Len() != 3 {
		t.Fatalf("Len() = %d, want 3 (base, Steel, Wall)", g.Len())
	}

	wall, ok := g.Node("Wall")
	if !ok {
		t.Fatal("Node(Wall) not found")
	}
	if wall.Definition.Parent != "BuildingBase" || wall.Definition.Abstract {
		t.Fatalf("Wall definition = %+v", wall.Definition)
	}

	// Inherited field and merged composite are present on the resolved tree.
	if f, ok := wall.Definition.Resolved.Field("category"); !ok || f.Scalar != "Building" {
		t.Fatalf("Wall category = %v, want inherited Building", f)
	}
	stats, ok := wall.Definition.Resolved.Field("statBases")
	if !ok || stats.Kind != FieldComposite {
		t.Fatalf("Wall statBases = %v", stats)
	}
	if _, ok := stats.Field("Flammability"); !ok {
		t.Fatal("Wall statBases lost inherited Flammability")
	}
	if _, ok := stats.Field("MaxHitPoints"); !ok {
		t.Fatal("Wall statBases lost own MaxHitPoints")
	}

	// Wall carries a parent edge and an element-name edge to Steel.
	kinds := make(map[EdgeKind]string)
	for _, e := range wall.Outbound {
		kinds[e.Kind] = e.Target
	}
	if kinds[EdgeParent] != "BuildingBase" {
		t.Fatalf("parent edge = %q, want BuildingBase", kinds[EdgeParent])
	}
	if kinds[EdgeElementName] != "Steel" {
		t.Fatalf("element-name edge = %q, want Steel", kinds[EdgeElementName])
	}

	steel, _ := g.Node("Steel")
	if len(steel.Inbound) != 1 || steel.Inbound[0].Source != "Wall" {
		t.Fatalf("Steel inbound = %v, want one edge from Wall", steel.Inbound)
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	run := func() *Graph {
		g, err := Load(corpus(), ".")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		return g
	}
	a, b := run(), run()
	if !reflect.DeepEqual(a.Names(), b.Names()) {
		t.Fatalf("names differ across runs: %v vs %v", a.Names(), b.Names())
	}
	for _, name := range a.Names() {
		na, _ := a.Node(name)
		nb, _ := b.Node(name)
		if !reflect.DeepEqual(na.Outbound, nb.Outbound) {
			t.Fatalf("%s outbound differs across runs", name)
		}
		if !reflect.DeepEqual(na.Inbound, nb.Inbound) {
			t.Fatalf("%s inbound differs across runs", name)
		}
	}
}

func TestGraphInboundMatchesOutbound(t *testing.T) {
	g, err := Load(corpus(), ".")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	outTotal, inTotal := 0, 0
	for _, name := range g.Names() {
		node, _ := g.Node(name)
		outTotal += len(node.Outbound)
		inTotal += len(node.Inbound)
		for _, e := range node.Outbound {
			target, ok := g.Node(e.Target)
			if !ok {
				t.Fatalf("edge target %q not in graph", e.Target)
			}
			found := false
			for _, in := range target.Inbound {
				if in == e {
					found = true
					break
				}
			}
			if !found {
				t.Fatalf("edge %v missing from inbound of %s", e, e.Target)
			}
		}
	}
	if outTotal != inTotal {
		t.Fatalf("outbound = %d, inbound = %d, want equal", outTotal, inTotal)
	}
}

func TestResolveDuplicateAcrossFiles(t *testing.T) {
	fsys := fstest.MapFS{
		"a.xml": {Data: []byte(`<Defs><ThingDef><defName>Steel</defName></ThingDef></Defs>`)},
		"b.xml": {Data: []byte(`<Defs><ThingDef><defName>Steel</defName></ThingDef></Defs>`)},
	}
	_, err := Load(fsys, ".")
	if err == nil {
		t.Fatal("Load() error = nil, want duplicate failure")
	}
	diags, ok := errors.AsDiagnostics(err)
	if !ok {
		t.Fatalf("error %v does not carry diagnostics", err)
	}
	dups := diags.Filter(errors.CodeDuplicateDefinitionName)
	if len(dups) != 1 {
		t.Fatalf("duplicate diags = %d, want 1", len(dups))
	}
	for _, p := range []string{"a.xml", "b.xml"} {
		if !strings.Contains(dups[0].Message, p) {
			t.Fatalf("diagnostic %q does not name %s", dups[0].Message, p)
		}
	}
}

func TestResolveNoDefinitions(t *testing.T) {
	fsys := fstest.MapFS{
		"empty.xml": {Data: []byte(`<Defs></Defs>`)},
	}
	_, err := Load(fsys, ".")
	if err == nil {
		t.Fatal("Load() error = nil, want no-definitions failure")
	}
	diags, ok := errors.AsDiagnostics(err)
	if !ok || len(diags.Filter(errors.CodeNoDefinitions)) != 1 {
		t.Fatalf("error = %v, want no-definitions diagnostic", err)
	}
}

func TestResolveMalformedFileSkipped(t *testing.T) {
	fsys := fstest.MapFS{
		"bad.xml":  {Data: []byte(`<Defs><ThingDef>`)},
		"good.xml": {Data: []byte(`<Defs><ThingDef><defName>Steel</defName></ThingDef></Defs>`)},
	}
	g, err := Load(fsys, ".")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if g.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", g.Len())
	}
	warnings := g.Diagnostics().Filter(errors.CodeMalformedXML)
	if len(warnings) != 1 || warnings[0].Source != "bad.xml" {
		t.Fatalf("malformed diags = %v, want one for bad.xml", warnings)
	}
	if warnings[0].Severity != errors.SeverityWarning {
		t.Fatalf("severity = %v, want warning", warnings[0].Severity)
	}
}

func TestResolveExcludedNotInGraph(t *testing.T) {
	fsys := fstest.MapFS{
		"defs.xml": {Data: []byte(`<Defs>
			<ThingDef ParentName="Ghost"><defName>Orphan</defName></ThingDef>
			<ThingDef><defName>Steel</defName></ThingDef>
		</Defs>`)},
	}
	g, err := Load(fsys, ".")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, ok := g.Node("Orphan"); ok {
		t.Fatal("excluded definition present in graph")
	}
	if len(g.Diagnostics().Filter(errors.CodeMissingParent)) != 1 {
		t.Fatalf("diags = %v, want one missing-parent", g.Diagnostics())
	}
}

func TestDefSetAdd(t *testing.T) {
	set := NewDefSet()
	if err := set.Add("defs.xml", []byte(`<Defs><ThingDef><defName>Steel</defName></ThingDef></Defs>`)); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := set.Add("  ", nil); err == nil {
		t.Fatal("Add() with blank path succeeded")
	}
	if set.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", set.Len())
	}
	g, err := set.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if g.Len() != 1 {
		t.Fatalf("graph Len() = %d, want 1", g.Len())
	}
}

func TestOptionsCustomVocabulary(t *testing.T) {
	fsys := fstest.MapFS{
		"units.xml": {Data: []byte(`<Units>
			<UnitDef><id>Tank</id><entries><item>Rifle</item></entries></UnitDef>
			<UnitDef><id>Rifle</id></UnitDef>
		</Units>`)},
	}
	opts := NewOptions().
		WithContainerTag("Units").
		WithNameField("id").
		WithListItemTag("item").
		WithReferencePatterns("item")
	g, err := LoadWithOptions(context.Background(), fsys, ".", opts)
	if err != nil {
		t.Fatalf("LoadWithOptions() error = %v", err)
	}
	tank, ok := g.Node("Tank")
	if !ok {
		t.Fatal("Node(Tank) not found")
	}
	if len(tank.Outbound) != 1 || tank.Outbound[0].Target != "Rifle" {
		t.Fatalf("outbound = %v, want item edge to Rifle", tank.Outbound)
	}
}

func TestOptionsValidate(t *testing.T) {
	if err := NewOptions().Validate(); err != nil {
		t.Fatalf("Validate() error = %v on defaults", err)
	}
	if err := NewOptions().WithReferencePatterns("[").Validate(); err == nil {
		t.Fatal("Validate() accepted malformed pattern")
	}
	if err := NewOptions().WithWorkers(-1).Validate(); err == nil {
		t.Fatal("Validate() accepted negative workers")
	}
}

func TestExportPlain(t *testing.T) {
	g, err := Load(corpus(), ".")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	var buf bytes.Buffer
	opts := ExportOptions{Plain: true, Now: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	if err := g.Export(&buf, opts); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	var decoded struct {
		Categories []struct {
			Name        string `json:"name"`
			Definitions []struct {
				Name string `json:"def_name"`
			} `json:"definitions"`
		} `json:"categories"`
		Stats struct {
			TotalDefs int `json:"total_defs"`
		} `json:"stats"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded.Stats.TotalDefs != 3 {
		t.Fatalf("total_defs = %d, want 3", decoded.Stats.TotalDefs)
	}
	if len(decoded.Categories) != 1 || decoded.Categories[0].Name != "ThingDef" {
		t.Fatalf("categories = %+v", decoded.Categories)
	}
}
