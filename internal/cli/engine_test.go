package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ppiankov/mealguard/internal/model"
	"github.com/ppiankov/mealguard/internal/quota"
)

// --- constraintsFor ---

func TestConstraintsFor_DefaultsToGeneral(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cs, cfg, err := constraintsFor("", "")
	require.NoError(t, err)
	require.NotNil(t, cfg)
	require.Equal(t, model.ConditionGeneral, cs.Condition)
}

func TestConstraintsFor_Profile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cs, _, err := constraintsFor("", "type2-diabetes")
	require.NoError(t, err)
	require.Equal(t, model.ConditionType2, cs.Condition)
	lunch, ok := cs.RangeFor(model.Lunch)
	require.True(t, ok)
	require.Equal(t, 45.0, lunch.Max)
	require.Contains(t, cs.BlockedIngredients, "rice")
}

func TestConstraintsFor_UnknownProfile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	_, _, err := constraintsFor("", "no-such-profile")
	require.Error(t, err)
}

func TestConstraintsFor_MalformedPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("conditions: [not, a, map"), 0o644))
	_, _, err := constraintsFor(path, "")
	require.Error(t, err)
}

// --- readInput ---

func TestReadInput_YAMLCandidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meal.yaml")
	doc := `name: Chicken salad
ingredients:
  - chicken
  - name: spinach
nutrition:
  carbs: 20
  fiber: 8
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	var c model.Candidate
	require.NoError(t, readInput(path, &c))
	require.Equal(t, "Chicken salad", c.Name)
	require.Len(t, c.Ingredients, 2)
	require.Equal(t, "spinach", c.Ingredients[1].Name)
	require.Equal(t, 12.0, c.Nutrition.Net())
}

func TestReadInput_JSONCandidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meal.json")
	doc := `{"name":"Oats","ingredients":["oats",{"name":"berries"}]}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	var c model.Candidate
	require.NoError(t, readInput(path, &c))
	require.Equal(t, "Oats", c.Name)
	require.Len(t, c.Ingredients, 2)
}

func TestReadInput_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"name":`), 0o644))

	var c model.Candidate
	require.Error(t, readInput(path, &c))
}

// --- loadHistory ---

func TestLoadHistory_UntimedItemsCountToday(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.yaml")
	doc := `- name: Rice bowl
  ingredients: [rice]
- name: Salad
  committed_at: 2026-03-14T08:00:00Z
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	quotaHistory, quotaUseDB = path, false
	defer func() { quotaHistory = "" }()

	dayStart := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	items, err := loadHistory(context.Background(), "", dayStart)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.True(t, items[0].CommittedAt.IsZero())
	require.Equal(t, []string{"rice"}, items[0].Ingredients)

	budget := quota.StarchBudget(nil, model.ResolvedGuardrails{StarchSlots: 1}, dayStart)
	res := quota.Check(quota.Request{Name: "Pasta"}, items, budget)
	require.Equal(t, 1, res.State.SlotsUsed)
	require.True(t, res.RequiresDecision)
}

func TestLoadHistory_NoneGiven(t *testing.T) {
	quotaHistory, quotaUseDB = "", false
	items, err := loadHistory(context.Background(), "", time.Now())
	require.NoError(t, err)
	require.Empty(t, items)
}
