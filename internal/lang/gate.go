// Package lang implements the two-tier language gate used to filter posts
// and comments: a statistical classifier first, a target-script code-point
// ratio as fallback.
package lang

import (
	"regexp"
	"unicode"
)

// Classifier detects the language of a text. Implementations are treated as
// fallible; an error means the classifier could not reach a verdict.
type Classifier interface {
	Classify(text string) (string, error)
}

// scriptPatterns maps target ISO codes to the code-point blocks of the
// language's native script. Greek covers the basic and extended (polytonic)
// blocks. Targets without an entry have no script fallback; the loose gate
// is then classifier-only.
var scriptPatterns = map[string]*regexp.Regexp{
	"el": regexp.MustCompile(`[\x{0370}-\x{03FF}\x{1F00}-\x{1FFF}]`),
}

// Gate decides whether a text is in the target language.
type Gate struct {
	classifier Classifier
	target     string
	script     *regexp.Regexp
	minRatio   float64
}

// NewGate builds a gate for the given ISO 639-1 target code. minRatio is the
// script-ratio threshold the loose check falls back to when the classifier
// is unsure; targets not listed in scriptPatterns skip the fallback.
func NewGate(classifier Classifier, target string, minRatio float64) *Gate {
	return &Gate{
		classifier: classifier,
		target:     target,
		script:     scriptPatterns[target],
		minRatio:   minRatio,
	}
}

// ScriptRatio returns the approximate share of target-script code points
// among alphabetic characters in text. Zero when the target has no script
// pattern.
func (g *Gate) ScriptRatio(text string) float64 {
	if g.script == nil || text == "" {
		return 0
	}
	letters := 0
	for _, r := range text {
		if unicode.IsLetter(r) {
			letters++
		}
	}
	if letters == 0 {
		return 0
	}
	hits := len(g.script.FindAllString(text, -1))
	return float64(hits) / float64(letters)
}

// Loose is the title-level check: classifier verdict first, script-ratio
// heuristic when the classifier errs or disagrees.
func (g *Gate) Loose(text string) bool {
	if text == "" {
		return false
	}
	if code, err := g.classifier.Classify(text); err == nil && code == g.target {
		return true
	}
	if g.script == nil {
		return false
	}
	return g.ScriptRatio(text) >= g.minRatio
}

// Strict is the comment-level check: classifier only. Short comments make
// the classifier shaky, so an inconclusive verdict fails the gate.
func (g *Gate) Strict(text string) bool {
	if text == "" {
		return false
	}
	code, err := g.classifier.Classify(text)
	return err == nil && code == g.target
}
