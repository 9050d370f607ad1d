package generation

import (
	"fmt"
	"strings"

	"alchemist/internal/config"
	"alchemist/internal/textutil"
)

// QualityGate decides whether generated text may be stored.
type QualityGate struct {
	MinWords        int
	Boilerplate     []string
	RequireKeywords bool
}

// QualityReport explains a gate decision.
type QualityReport struct {
	Words           int
	Boilerplate     string
	MissingKeywords []string
	Passed          bool
	Reason          string
}

// NewQualityGate builds the gate from generation settings.
func NewQualityGate(cfg config.Generation) QualityGate {
	return QualityGate{
		MinWords:        cfg.MinArticleWords,
		Boilerplate:     append([]string(nil), cfg.BoilerplatePhrases...),
		RequireKeywords: cfg.RequireKeywords,
	}
}

// Check evaluates body. A body at exactly MinWords passes. Boilerplate
// matching ignores case. Missing keywords only fail the gate when
// RequireKeywords is set.
func (g QualityGate) Check(body string, keywords []string) QualityReport {
	report := QualityReport{Words: textutil.WordCount(body)}
	for _, phrase := range g.Boilerplate {
		if phrase = strings.TrimSpace(phrase); phrase != "" && textutil.ContainsFold(body, phrase) {
			report.Boilerplate = phrase
			break
		}
	}
	for _, kw := range keywords {
		if kw = strings.TrimSpace(kw); kw != "" && !textutil.ContainsFold(body, kw) {
			report.MissingKeywords = append(report.MissingKeywords, kw)
		}
	}

	switch {
	case report.Words < g.MinWords:
		report.Reason = fmt.Sprintf("article too short: %d words, need %d", report.Words, g.MinWords)
	case report.Boilerplate != "":
		report.Reason = fmt.Sprintf("model boilerplate detected: %q", report.Boilerplate)
	case g.RequireKeywords && len(report.MissingKeywords) > 0:
		report.Reason = fmt.Sprintf("missing keywords: %s", strings.Join(report.MissingKeywords, ", "))
	default:
		report.Passed = true
	}
	return report
}
