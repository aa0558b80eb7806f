package terms

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func sugarMatcher() *Matcher {
	return New([]Term{{
		Name:         "sugar",
		Aliases:      []string{"ketchup", "honey", "syrup"},
		SafeVariants: []string{"sugar-free", "no sugar", "zero sugar", "unsweetened"},
	}})
}

func TestSubstringCaseInsensitive(t *testing.T) {
	m := sugarMatcher()

	ms := m.Match([]string{"Brown SUGAR glaze"})
	if len(ms) != 1 {
		t.Fatalf("expected 1 match, got %d", len(ms))
	}
	if ms[0].Term != "sugar" || ms[0].Matched != "sugar" {
		t.Errorf("unexpected match: %+v", ms[0])
	}
	if ms[0].Text != "Brown SUGAR glaze" {
		t.Errorf("expected original text preserved, got %q", ms[0].Text)
	}
}

func TestAliasMatchesHiddenSource(t *testing.T) {
	m := sugarMatcher()

	ms := m.Match([]string{"ketchup"})
	if len(ms) != 1 {
		t.Fatalf("expected ketchup to match sugar, got %d matches", len(ms))
	}
	if ms[0].Term != "sugar" || ms[0].Matched != "ketchup" {
		t.Errorf("unexpected match: %+v", ms[0])
	}
}

func TestAliasMatchesWholeWordsOnly(t *testing.T) {
	m := New([]Term{{Name: "alcohol", Aliases: []string{"rum", "red wine"}}})

	tests := []struct {
		text string
		want string
	}{
		{"dark rum", "rum"},
		{"Rum-soaked raisins", "rum"},
		{"rums", "rum"},
		{"red wine reduction", "red wine"},
		{"crumbled feta", ""},
		{"chicken drumstick", ""},
		{"rumble", ""},
		{"alcoholic", "alcohol"}, // the name itself is a plain substring
	}
	for _, tt := range tests {
		if got := m.MatchText("alcohol", tt.text); got != tt.want {
			t.Errorf("%q: expected %q, got %q", tt.text, tt.want, got)
		}
	}
}

func TestSafeVariantExempts(t *testing.T) {
	m := sugarMatcher()

	for _, text := range []string{"sugar-free ketchup", "Unsweetened almond milk with no SUGAR", "zero sugar syrup"} {
		if ms := m.Match([]string{text}); len(ms) != 0 {
			t.Errorf("expected %q to be exempt, got %+v", text, ms)
		}
	}
}

func TestSafeVariantIsPerTerm(t *testing.T) {
	m := New([]Term{
		{Name: "rice", SafeVariants: []string{"cauliflower rice"}},
		{Name: "sugar", SafeVariants: []string{"sugar-free"}},
	})

	// "cauliflower rice" exempts rice, not sugar.
	got := m.MatchedTerms([]string{"cauliflower rice with sugar"})
	if diff := cmp.Diff([]string{"sugar"}, got); diff != "" {
		t.Errorf("matched terms mismatch (-want +got):\n%s", diff)
	}
}

func TestOneMatchPerTermText(t *testing.T) {
	m := sugarMatcher()

	ms := m.Match([]string{"sugar syrup with honey", "white sugar"})
	if len(ms) != 2 {
		t.Fatalf("expected one match per text, got %d: %+v", len(ms), ms)
	}
}

func TestMatchedTermsSortedUnique(t *testing.T) {
	m := FromNames([]string{"rice", "bread", "pasta"})

	got := m.MatchedTerms([]string{"bread and pasta", "pasta salad", "rice"})
	want := []string{"bread", "pasta", "rice"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("matched terms mismatch (-want +got):\n%s", diff)
	}
}

func TestAnyAndEmpty(t *testing.T) {
	m := FromNames([]string{"potato"})
	if !m.Any([]string{"sweet potato mash"}) {
		t.Error("expected Any=true for potato")
	}
	if m.Any(nil) {
		t.Error("expected Any=false for no texts")
	}
	if New(nil).Match([]string{"anything"}) != nil {
		t.Error("expected nil matches from empty matcher")
	}
}

func TestAddTermSkipsBlank(t *testing.T) {
	m := New(nil)
	m.AddTerm(Term{Name: "  "})
	m.AddTerm(Term{Name: "Bacon"})
	if m.Len() != 1 {
		t.Fatalf("expected 1 term, got %d", m.Len())
	}
	if hit := m.MatchText("bacon", "crispy BACON bits"); hit != "bacon" {
		t.Errorf("expected bacon hit, got %q", hit)
	}
	if hit := m.MatchText("missing", "crispy bacon"); hit != "" {
		t.Errorf("expected no hit for unknown term, got %q", hit)
	}
}

func TestTermsReturnsCopy(t *testing.T) {
	m := FromNames([]string{"rice"})
	ts := m.Terms()
	ts[0].Name = "changed"
	if m.Terms()[0].Name != "rice" {
		t.Error("expected Terms to return a copy")
	}
}
