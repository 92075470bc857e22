// Package classifier assigns a document category from URL and title text.
package classifier

import (
	"strings"

	"github.com/hkfcheung/regintel-sub001/internal/pipeline"
)

// rule maps a lowercase substring to a category. Rules are evaluated in
// order against the URL first, then the title; the first match wins.
type rule struct {
	pattern  string
	category pipeline.Category
}

// rules is the ordered heuristic table. Order matters: a guidance URL whose
// title mentions a meeting still classifies as guidance.
var rules = []rule{
	{"guidance", pipeline.CategoryGuidance},
	{"rulemaking", pipeline.CategoryRulemaking},
	{"proposed-rule", pipeline.CategoryRulemaking},
	{"final-rule", pipeline.CategoryRulemaking},
	{"federal-register", pipeline.CategoryRulemaking},
	{"federal register", pipeline.CategoryRulemaking},
	{"enforcement", pipeline.CategoryEnforcement},
	{"warning-letter", pipeline.CategoryEnforcement},
	{"warning letter", pipeline.CategoryEnforcement},
	{"consent", pipeline.CategoryEnforcement},
	{"meeting", pipeline.CategoryMeeting},
	{"advisory-committee", pipeline.CategoryMeeting},
	{"advisory committee", pipeline.CategoryMeeting},
	{"workshop", pipeline.CategoryMeeting},
	{"webinar", pipeline.CategoryMeeting},
	{"notice", pipeline.CategoryNotice},
	{"report", pipeline.CategoryReport},
	{"study", pipeline.CategoryReport},
	{"white-paper", pipeline.CategoryReport},
	{"white paper", pipeline.CategoryReport},
}

// Classify assigns a category from the URL and title. Pure function, no
// I/O, never fails: unmatched input falls back to CategoryOther.
func Classify(url, title string) pipeline.Category {
	loweredURL := strings.ToLower(url)
	loweredTitle := strings.ToLower(title)
	for _, r := range rules {
		if strings.Contains(loweredURL, r.pattern) || strings.Contains(loweredTitle, r.pattern) {
			return r.category
		}
	}
	return pipeline.CategoryOther
}
