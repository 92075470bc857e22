package classifier

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hkfcheung/regintel-sub001/internal/pipeline"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		url   string
		title string
		want  pipeline.Category
	}{
		{"guidance url", "https://fda.gov/guidance/software-2024", "", pipeline.CategoryGuidance},
		{"rulemaking title", "https://sec.gov/doc/33-11151", "Final Rule: Cybersecurity Disclosure", pipeline.CategoryRulemaking},
		{"enforcement", "https://ftc.gov/enforcement/cases/acme", "", pipeline.CategoryEnforcement},
		{"warning letter title", "https://fda.gov/inspections/x", "Warning Letter to Acme Corp", pipeline.CategoryEnforcement},
		{"meeting", "https://fda.gov/advisory-committee/2024-06", "", pipeline.CategoryMeeting},
		{"notice", "https://sec.gov/notice/self-regulatory", "", pipeline.CategoryNotice},
		{"report title", "https://gao.gov/products/106210", "GAO Study on oversight", pipeline.CategoryReport},
		{"default", "https://fda.gov/about", "Contact us", pipeline.CategoryOther},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, Classify(tc.url, tc.title))
		})
	}
}

// Rule order is part of the contract: a guidance URL wins over a meeting
// mention in the title because the guidance rule is checked first.
func TestClassifyRuleOrder(t *testing.T) {
	t.Parallel()

	got := Classify("https://fda.gov/guidance/device-software", "Public meeting on device software")
	require.Equal(t, pipeline.CategoryGuidance, got)
}

func TestClassifyDeterministic(t *testing.T) {
	t.Parallel()

	url, title := "https://fda.gov/rulemaking/2024", "Proposed Rule"
	first := Classify(url, title)
	for range 50 {
		require.Equal(t, first, Classify(url, title))
	}
}
