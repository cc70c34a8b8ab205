package catalog

import (
	"testing"
)

func TestDefaultCatalogLoads(t *testing.T) {
	cat, err := Default()
	if err != nil {
		t.Fatalf("default catalog: %v", err)
	}
	if len(cat.Sections) != 7 {
		t.Fatalf("sections = %d", len(cat.Sections))
	}
	if len(cat.Gates) != 7 {
		t.Fatalf("gates = %d", len(cat.Gates))
	}
	for i, s := range cat.Sections {
		if s.Ordinal != i+1 {
			t.Fatalf("section %s ordinal = %d at position %d", s.ID, s.Ordinal, i)
		}
	}
	if _, ok := cat.Question("idea_summary"); !ok {
		t.Fatal("idea_summary missing")
	}
	if q, _ := cat.Question("founder_eligibility_status"); q.GateID != "eligibility" {
		t.Fatalf("eligibility link = %q", q.GateID)
	}
}

func baseSections() []SectionSpec {
	return []SectionSpec{{ID: "s1", Ordinal: 1, Title: "One", MinPercent: 50, OptimalPercent: 80, Weight: 1}}
}

func TestLoadRejectsBadDefinitions(t *testing.T) {
	cases := []struct {
		name      string
		sections  []SectionSpec
		questions []Question
		gates     []GateSpec
	}{
		{
			name:     "duplicate section",
			sections: append(baseSections(), SectionSpec{ID: "s1", Ordinal: 2, MinPercent: 50, OptimalPercent: 80}),
		},
		{
			name:     "optimal below minimum",
			sections: []SectionSpec{{ID: "s1", Ordinal: 1, MinPercent: 80, OptimalPercent: 50}},
		},
		{
			name:      "question in unknown section",
			sections:  baseSections(),
			questions: []Question{{ID: "q1", SectionID: "nope", Kind: KindText}},
		},
		{
			name:      "choice without choices",
			sections:  baseSections(),
			questions: []Question{{ID: "q1", SectionID: "s1", Kind: KindChoice}},
		},
		{
			name:      "unknown gate reference",
			sections:  baseSections(),
			questions: []Question{{ID: "q1", SectionID: "s1", Kind: KindText, GateID: "ghost"}},
		},
		{
			name:     "gate without linked question",
			sections: baseSections(),
			gates:    []GateSpec{{ID: "g1", SectionID: "s1"}},
		},
		{
			name:     "gate linked twice",
			sections: baseSections(),
			gates:    []GateSpec{{ID: "g1", SectionID: "s1"}},
			questions: []Question{
				{ID: "q1", SectionID: "s1", Kind: KindText, GateID: "g1"},
				{ID: "q2", SectionID: "s1", Kind: KindText, GateID: "g1"},
			},
		},
		{
			name:     "forward visibility reference",
			sections: baseSections(),
			questions: []Question{
				{ID: "q1", SectionID: "s1", Kind: KindText, VisibleIf: []Condition{{QuestionID: "q2", Op: OpAnswered}}},
				{ID: "q2", SectionID: "s1", Kind: KindText},
			},
		},
		{
			name:     "unknown visibility op",
			sections: baseSections(),
			questions: []Question{
				{ID: "q1", SectionID: "s1", Kind: KindText},
				{ID: "q2", SectionID: "s1", Kind: KindText, VisibleIf: []Condition{{QuestionID: "q1", Op: "SOMEDAY"}}},
			},
		},
		{
			name:      "inconsistent length bounds",
			sections:  baseSections(),
			questions: []Question{{ID: "q1", SectionID: "s1", Kind: KindText, MinLength: 50, MaxLength: 10}},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(tc.sections, tc.questions, tc.gates, nil); err == nil {
				t.Fatal("definition accepted")
			}
		})
	}
}

func visibilityCatalog(t *testing.T) *Catalog {
	t.Helper()
	cat, err := Load(
		baseSections(),
		[]Question{
			{ID: "count", SectionID: "s1", Kind: KindNumber, Required: true},
			{ID: "status", SectionID: "s1", Kind: KindChoice, Required: true, Choices: []string{"Yes", "No"}},
			{ID: "team", SectionID: "s1", Kind: KindText,
				VisibleIf: []Condition{{QuestionID: "count", Op: OpAtLeast, Value: "2"}}},
			{ID: "details", SectionID: "s1", Kind: KindText,
				VisibleIf: []Condition{
					{QuestionID: "status", Op: OpEquals, Value: "Yes"},
					{QuestionID: "count", Op: OpAnswered},
				}},
			{ID: "fallback", SectionID: "s1", Kind: KindText,
				VisibleIf: []Condition{{QuestionID: "status", Op: OpNotEquals, Value: "Yes"}}},
		},
		nil, nil,
	)
	if err != nil {
		t.Fatalf("load visibility catalog: %v", err)
	}
	return cat
}

func visibleIDs(questions []Question) []string {
	ids := make([]string, 0, len(questions))
	for _, q := range questions {
		ids = append(ids, q.ID)
	}
	return ids
}

func TestResolveVisibleFailsClosed(t *testing.T) {
	cat := visibilityCatalog(t)

	// Nothing answered: every conditional question is hidden.
	got := visibleIDs(cat.ResolveVisible(nil))
	want := []string{"count", "status"}
	if len(got) != len(want) {
		t.Fatalf("visible with no answers = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("visible with no answers = %v", got)
		}
	}
}

func TestResolveVisibleConditions(t *testing.T) {
	cat := visibilityCatalog(t)
	cases := []struct {
		name   string
		values map[string]string
		wantID string
		want   bool
	}{
		{"at_least met", map[string]string{"count": "2"}, "team", true},
		{"at_least unmet", map[string]string{"count": "1"}, "team", false},
		{"at_least non-numeric", map[string]string{"count": "two"}, "team", false},
		{"equals met with conjunct", map[string]string{"status": "Yes", "count": "1"}, "details", true},
		{"equals met without conjunct", map[string]string{"status": "Yes"}, "details", false},
		{"not_equals met", map[string]string{"status": "No"}, "fallback", true},
		{"not_equals unmet", map[string]string{"status": "Yes"}, "fallback", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			found := false
			for _, q := range cat.ResolveVisible(tc.values) {
				if q.ID == tc.wantID {
					found = true
				}
			}
			if found != tc.want {
				t.Fatalf("%s visible = %v, want %v", tc.wantID, found, tc.want)
			}
		})
	}
}

func TestResolveVisibleIsDeterministic(t *testing.T) {
	cat := visibilityCatalog(t)
	values := map[string]string{"count": "3", "status": "Yes"}
	first := visibleIDs(cat.ResolveVisible(values))
	for i := 0; i < 10; i++ {
		again := visibleIDs(cat.ResolveVisible(values))
		if len(again) != len(first) {
			t.Fatalf("run %d length changed: %v vs %v", i, again, first)
		}
		for j := range first {
			if again[j] != first[j] {
				t.Fatalf("run %d order changed: %v vs %v", i, again, first)
			}
		}
	}
}

func TestVisibleInSectionFiltersAndKeepsOrder(t *testing.T) {
	cat, err := Default()
	if err != nil {
		t.Fatalf("default catalog: %v", err)
	}
	visible := cat.VisibleInSection("founder", map[string]string{"founder_count": "2"})
	ids := visibleIDs(visible)
	sawTeam := false
	for _, id := range ids {
		q, _ := cat.Question(id)
		if q.SectionID != "founder" {
			t.Fatalf("question %s leaked from section %s", id, q.SectionID)
		}
		if id == "founder_team" {
			sawTeam = true
		}
	}
	if !sawTeam {
		t.Fatalf("founder_team hidden with two founders: %v", ids)
	}
}
