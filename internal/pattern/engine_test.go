package pattern

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/katalog/internal/model"
	"github.com/Veraticus/katalog/internal/testutil"
)

func codes(items []model.CompanionItem) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Code)
	}
	return out
}

func TestDefaultRulesCompile(t *testing.T) {
	engine, err := NewRuleEngine(DefaultRules())
	require.NoError(t, err)
	assert.Len(t, engine.Rules(), len(DefaultRules()))
}

func TestRuleEngine_Apply(t *testing.T) {
	engine := MustDefault()

	tests := []struct {
		name      string
		confirmed []model.ConfirmedItem
		known     []string
		want      []string
	}{
		{
			name:      "footing concrete yields known formwork and rebar",
			confirmed: []model.ConfirmedItem{{Code: testutil.CodeStripFootingConcrete, Name: "Základové pasy z betonu tř. C 25/30"}},
			known:     testutil.KnownCodes(),
			want:      []string{testutil.CodeStripFootingForms, testutil.CodeStripFootingRebar},
		},
		{
			name:      "without known codes every template is proposed",
			confirmed: []model.ConfirmedItem{{Code: testutil.CodeStripFootingConcrete, Name: "Základové pasy z betonu"}},
			want:      []string{testutil.CodeStripFootingForms, "274351122", testutil.CodeStripFootingRebar},
		},
		{
			name:      "slab matches case-insensitively",
			confirmed: []model.ConfirmedItem{{Code: testutil.CodeSlabConcrete, Name: "STROPY DESKOVÉ ZE ŽELEZOBETONU"}},
			known:     testutil.KnownCodes(),
			want:      []string{testutil.CodeSlabForms, testutil.CodeSlabRebar},
		},
		{
			name: "already confirmed codes are not proposed",
			confirmed: []model.ConfirmedItem{
				{Code: testutil.CodeStripFootingConcrete, Name: "Základové pasy z betonu"},
				{Code: testutil.CodeStripFootingForms, Name: "Bednění základových pasů zřízení"},
			},
			known: testutil.KnownCodes(),
			want:  []string{testutil.CodeStripFootingRebar},
		},
		{
			name:      "description participates in matching",
			confirmed: []model.ConfirmedItem{{Code: "X1", Name: "Položka 12", Description: "beton do základových patek"}},
			want:      []string{testutil.CodeStripFootingForms, "274351122", testutil.CodeStripFootingRebar},
		},
		{
			name:      "no rule fires",
			confirmed: []model.ConfirmedItem{{Code: "X2", Name: "Malba interiérů"}},
			want:      []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := engine.Apply(tt.confirmed, tt.known)
			assert.Equal(t, tt.want, codes(got))
		})
	}
}

func TestRuleEngine_NeverInventsCodes(t *testing.T) {
	engine := MustDefault()
	known := testutil.KnownCodes()
	knownSet := make(map[string]bool, len(known))
	for _, c := range known {
		knownSet[c] = true
	}

	var confirmed []model.ConfirmedItem
	for _, rec := range testutil.CatalogRecords() {
		confirmed = append(confirmed, model.ConfirmedItem{Code: rec.Code, Name: rec.Name})
	}

	for _, item := range engine.Apply(confirmed, known) {
		assert.True(t, knownSet[item.Code], "invented code %s from rule %s", item.Code, item.RuleID)
	}

	// Excavation companions are absent from the fixture catalog.
	assert.Empty(t, engine.Apply([]model.ConfirmedItem{{Code: testutil.CodePitExcavation, Name: "Hloubení jam nezapažených"}}, known))
}

func TestRuleEngine_EmitsEachCodeOnce(t *testing.T) {
	engine := MustDefault()
	confirmed := []model.ConfirmedItem{
		{Code: "A", Name: "Základové pasy z betonu"},
		{Code: "B", Name: "Beton základových patek"},
	}

	got := engine.Apply(confirmed, nil)
	seen := map[string]bool{}
	for _, item := range got {
		assert.False(t, seen[item.Code], "duplicate %s", item.Code)
		seen[item.Code] = true
		assert.Equal(t, "A", item.SourceCode)
		assert.Equal(t, "footing-concrete", item.RuleID)
		assert.NotEmpty(t, item.Reason)
	}
}

func TestNewRuleEngine_Errors(t *testing.T) {
	tests := []struct {
		name  string
		rules []model.CompanionRule
		want  string
	}{
		{
			name:  "bad pattern",
			rules: []model.CompanionRule{{ID: "r", Trigger: "(beton", Generates: []model.CompanionTemplate{{Code: "1"}}}},
			want:  "failed to compile",
		},
		{
			name:  "empty trigger",
			rules: []model.CompanionRule{{ID: "r"}},
			want:  "empty trigger",
		},
		{
			name: "duplicate id",
			rules: []model.CompanionRule{
				{ID: "r", Trigger: "beton"},
				{ID: "r", Trigger: "zdivo"},
			},
			want: "duplicate rule id",
		},
		{
			name:  "template without code",
			rules: []model.CompanionRule{{ID: "r", Trigger: "beton", Generates: []model.CompanionTemplate{{Name: "x"}}}},
			want:  "without a code",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRuleEngine(tt.rules)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDecodeRules(t *testing.T) {
	input := `
rules:
  - id: stairs
    name: Stairs need formwork
    trigger: schodi
    generates:
      - code: "430321414"
        name: Bednění schodišť
        unit: m2
        reason: betonáž schodiště
`
	rules, err := DecodeRules(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "stairs", rules[0].ID)
	assert.Equal(t, "430321414", rules[0].Generates[0].Code)

	_, err = DecodeRules(strings.NewReader("rules:\n  - id: x\n    trigger: '(['\n"))
	assert.Error(t, err)

	_, err = DecodeRules(strings.NewReader("rulez: []\n"))
	assert.Error(t, err, "unknown fields are rejected")
}

func TestNewFromFile_DefaultsWhenEmpty(t *testing.T) {
	engine, err := NewFromFile("")
	require.NoError(t, err)
	assert.NotEmpty(t, engine.Rules())

	_, err = NewFromFile("/nonexistent/rules.yaml")
	assert.Error(t, err)
}
