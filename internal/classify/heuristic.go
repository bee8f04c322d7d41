package classify

import (
	"strings"

	"github.com/CrowdShield/CS-Backend/internal/reports"
	"golang.org/x/text/cases"
)

type keywordRule struct {
	category reports.Category // empty: raises urgency only
	urgency  reports.Urgency
	keywords []string
}

// Rules are in category priority order: fire, medical, fight, crowd pressure.
var keywordRules = []keywordRule{
	{reports.CategoryFire, reports.UrgencyHigh, []string{"fire", "smoke", "flame", "burning", "explosion"}},
	{reports.CategoryMedical, reports.UrgencyHigh, []string{"collapsed", "unconscious", "not breathing", "seizure", "bleeding", "heart attack"}},
	{reports.CategoryMedical, reports.UrgencyMedium, []string{"injured", "hurt", "fainted", "dizzy", "medical"}},
	{reports.CategoryFight, reports.UrgencyHigh, []string{"knife", "weapon", "gun", "stabbed"}},
	{reports.CategoryFight, reports.UrgencyMedium, []string{"fight", "punch", "attack", "brawl", "aggressive"}},
	{reports.CategoryCrowdPressure, reports.UrgencyHigh, []string{"crush", "stampede", "trampled", "can't breathe"}},
	{reports.CategoryCrowdPressure, reports.UrgencyMedium, []string{"pushing", "packed", "overcrowded", "surge", "crowd"}},
	{"", reports.UrgencyMedium, []string{"help", "urgent", "emergency"}},
}

var apostrophes = strings.NewReplacer("’", "'", "‘", "'")

// Heuristic classifies text by keyword matching. It never fails; text with
// no known keyword yields low urgency and category other.
func Heuristic(text string) Result {
	folded := cases.Fold().String(apostrophes.Replace(text))

	res := Default(text)
	categorized := false
	for _, rule := range keywordRules {
		if !containsAny(folded, rule.keywords) {
			continue
		}
		if rule.category != "" && !categorized {
			res.AICategory = rule.category
			categorized = true
		}
		if rule.urgency.Rank() > res.Urgency.Rank() {
			res.Urgency = rule.urgency
		}
	}
	return res
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
