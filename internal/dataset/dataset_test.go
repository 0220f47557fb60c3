package dataset

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/defview/defgraph/internal/fieldtree"
	"github.com/defview/defgraph/internal/rawxml"
	"github.com/defview/defgraph/internal/reflink"
	"github.com/defview/defgraph/internal/registry"
)

func defEntry(t *testing.T, source, data string) Entry {
	t.Helper()
	node, err := rawxml.Parse(source, []byte(data))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	rec := &registry.Record{
		Kind:     node.Tag,
		Raw:      node,
		Fields:   fieldtree.FromNode(node, fieldtree.DefaultConfig()),
		Source:   source,
		Resolved: fieldtree.FromNode(node, fieldtree.DefaultConfig()),
	}
	if f, ok := rec.Resolved.Field("defName"); ok {
		rec.Name = f.Scalar
	}
	return Entry{Record: rec}
}

func TestBuildGroupsAndSorts(t *testing.T) {
	entries := []Entry{
		defEntry(t, "b.xml", `<ThingDef><defName>Zebra</defName></ThingDef>`),
		defEntry(t, "a.xml", `<RecipeDef><defName>MakeWall</defName></RecipeDef>`),
		defEntry(t, "a.xml", `<ThingDef><defName>Apple</defName></ThingDef>`),
	}
	d := Build(entries, time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC), "")

	if len(d.Categories) != 2 {
		t.Fatalf("categories = %d, want 2", len(d.Categories))
	}
	// "Recipe Def" sorts before "Thing Def".
	if d.Categories[0].Name != "RecipeDef" || d.Categories[1].Name != "ThingDef" {
		t.Fatalf("category order = %s, %s", d.Categories[0].Name, d.Categories[1].Name)
	}
	things := d.Categories[1]
	if things.Count != 2 || len(things.Definitions) != 2 {
		t.Fatalf("ThingDef count = %d, want 2", things.Count)
	}
	if things.Definitions[0].Name != "Apple" || things.Definitions[1].Name != "Zebra" {
		t.Fatalf("definitions unsorted: %s, %s", things.Definitions[0].Name, things.Definitions[1].Name)
	}
	if d.Stats.TotalDefs != 3 || d.Stats.TotalCategories != 2 || d.Stats.TotalFiles != 2 {
		t.Fatalf("stats = %+v", d.Stats)
	}
	if d.Stats.GeneratedAt != "2026-03-01 12:30:00 UTC" {
		t.Fatalf("GeneratedAt = %q", d.Stats.GeneratedAt)
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"ThingDef", "Thing Def"},
		{"ResearchProjectDef", "Research Project Def"},
		{"thingDef", "Thing Def"},
		{"Defs", "Defs"},
		{"XMLExtension", "XMLExtension"},
	}
	for _, tt := range tests {
		if got := displayName(tt.in); got != tt.want {
			t.Errorf("displayName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildDefPresentation(t *testing.T) {
	e := defEntry(t, "Data/Core/Defs/walls.xml", `<ThingDef>
		<defName>Wall</defName>
		<label>wall</label>
		<description>A wall.</description>
		<costList><Steel>5</Steel></costList>
	</ThingDef>`)
	e.Record.Parent = "BuildingBase"

	d := buildDef(e)
	if d.Label != "wall" || d.Description != "A wall." {
		t.Fatalf("label/description = %q/%q", d.Label, d.Description)
	}
	if d.Extension != "Core" {
		t.Fatalf("Extension = %q, want Core", d.Extension)
	}
	want := []string{"Inherits", "Craftable"}
	if len(d.Tags) != len(want) {
		t.Fatalf("Tags = %v, want %v", d.Tags, want)
	}
	for i := range want {
		if d.Tags[i] != want[i] {
			t.Fatalf("Tags = %v, want %v", d.Tags, want)
		}
	}
	if !strings.Contains(d.RawXML, "<defName>Wall</defName>") {
		t.Fatalf("RawXML missing content: %q", d.RawXML)
	}
}

func TestContentPackage(t *testing.T) {
	tests := []struct {
		source, want string
	}{
		{"Data/Core/Defs/a.xml", "Core"},
		{"Data/Biotech/Defs/a.xml", "Biotech"},
		{"mods/royalty/things.xml", "Royalty"},
		{"somewhere/else.xml", "Unknown"},
	}
	for _, tt := range tests {
		if got := contentPackage(tt.source); got != tt.want {
			t.Errorf("contentPackage(%q) = %q, want %q", tt.source, got, tt.want)
		}
	}
}

func TestBuildStructure(t *testing.T) {
	e := defEntry(t, "a.xml", `<ThingDef>
		<defName>Wall</defName>
		<statBases>
			<MaxHitPoints>300</MaxHitPoints>
			<Flammability>1.0</Flammability>
		</statBases>
	</ThingDef>`)
	s := buildDef(e).Structure
	if s == nil {
		t.Fatal("Structure = nil")
	}
	if s.ElementCount != 4 {
		t.Fatalf("ElementCount = %d, want 4", s.ElementCount)
	}
	if s.MaxDepth != 2 {
		t.Fatalf("MaxDepth = %d, want 2", s.MaxDepth)
	}
	if s.HasComplexStructure {
		t.Fatal("HasComplexStructure = true for a small tree")
	}
}

func TestBuildStructureEmpty(t *testing.T) {
	e := defEntry(t, "a.xml", `<ThingDef></ThingDef>`)
	if s := buildDef(e).Structure; s != nil {
		t.Fatalf("Structure = %+v, want nil for empty definition", s)
	}
}

func TestFlattenPreview(t *testing.T) {
	e := defEntry(t, "a.xml", `<ThingDef>
		<defName>Wall</defName>
		<graphicData>
			<texPath Suffix="east">Things/Wall</texPath>
		</graphicData>
	</ThingDef>`)
	rows := buildDef(e).Fields
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[0].Name != "defName" || rows[0].Content != "Wall" || rows[0].Depth != 0 || rows[0].HasChildren {
		t.Fatalf("row[0] = %+v", rows[0])
	}
	if rows[1].Name != "graphicData" || !rows[1].HasChildren || rows[1].Content != "" {
		t.Fatalf("row[1] = %+v", rows[1])
	}
	if rows[2].Depth != 1 || rows[2].Attributes != `Suffix="east"` {
		t.Fatalf("row[2] = %+v", rows[2])
	}
}

func TestCodeReferences(t *testing.T) {
	e := defEntry(t, "a.xml", `<ThingDef>
		<defName>Bomb</defName>
		<comps>
			<li Class="CompProperties_Explosive">
				<explosiveRadius>2.9</explosiveRadius>
			</li>
			<li Class="CompProperties_Explosive"/>
			<li Class="CompProperties_Forbiddable"/>
		</comps>
		<graphicData>
			<graphicClass> Graphic_Single </graphicClass>
		</graphicData>
	</ThingDef>`)
	got := buildDef(e).CodeReferences
	want := []string{"CompProperties_Explosive", "CompProperties_Forbiddable"}
	if len(got) != len(want) {
		t.Fatalf("CodeReferences = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("CodeReferences = %v, want %v", got, want)
		}
	}
}

func TestCodeReferencesEmpty(t *testing.T) {
	e := defEntry(t, "a.xml", `<ThingDef><defName>Steel</defName></ThingDef>`)
	if got := buildDef(e).CodeReferences; len(got) != 0 {
		t.Fatalf("CodeReferences = %v, want none", got)
	}
}

func TestReferences(t *testing.T) {
	out := references([]reflink.Edge{
		{Source: "Wall", Target: "Steel", Path: "costList/Steel", Kind: reflink.KindElementName, ToAbstract: false},
		{Source: "Wall", Target: "BuildingBase", Kind: reflink.KindParent, ToAbstract: true},
	}, false)
	if len(out) != 2 {
		t.Fatalf("references = %d, want 2", len(out))
	}
	if out[0].Name != "Steel" || out[0].Kind != "element" {
		t.Fatalf("out[0] = %+v", out[0])
	}
	if out[1].Name != "BuildingBase" || out[1].Kind != "parent" || !out[1].Abstract {
		t.Fatalf("out[1] = %+v", out[1])
	}

	in := references([]reflink.Edge{
		{Source: "Wall", Target: "Steel", Path: "costList/Steel", Kind: reflink.KindElementName, ToAbstract: true},
	}, true)
	if in[0].Name != "Wall" {
		t.Fatalf("inbound name = %q, want source Wall", in[0].Name)
	}
	if in[0].Abstract {
		t.Fatal("inbound reference flagged abstract")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	entries := []Entry{
		defEntry(t, "a.xml", `<ThingDef><defName>Steel</defName><label>steel</label></ThingDef>`),
	}
	d := Build(entries, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), "1.5.4104")

	var buf bytes.Buffer
	if err := d.Encode(&buf, EncodeOptions{Level: 3}); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	got, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(got.Categories) != 1 || got.Categories[0].Definitions[0].Name != "Steel" {
		t.Fatalf("round trip lost data: %+v", got)
	}
	if got.Stats.GeneratedAt != d.Stats.GeneratedAt {
		t.Fatalf("GeneratedAt = %q, want %q", got.Stats.GeneratedAt, d.Stats.GeneratedAt)
	}
	if got.Stats.GameVersion != "1.5.4104" {
		t.Fatalf("GameVersion = %q, want 1.5.4104", got.Stats.GameVersion)
	}
}

func TestEncodePlain(t *testing.T) {
	d := Build(nil, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), "")
	var buf bytes.Buffer
	if err := d.Encode(&buf, EncodeOptions{Plain: true}); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if !strings.HasPrefix(buf.String(), "{") {
		t.Fatalf("plain output is not JSON: %q", buf.String())
	}
	if !strings.Contains(buf.String(), `"total_defs":0`) {
		t.Fatalf("output missing stats: %q", buf.String())
	}
}
