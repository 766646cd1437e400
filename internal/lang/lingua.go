package lang

import (
	"errors"
	"strings"

	"github.com/pemistahl/lingua-go"
)

// ErrUndetermined is returned when the detector cannot reach a verdict.
var ErrUndetermined = errors.New("language undetermined")

// LinguaClassifier implements Classifier on top of the lingua detector.
// Building one loads the language models, so construct it once and share it
// across runs.
type LinguaClassifier struct {
	detector lingua.LanguageDetector
}

// NewLinguaClassifier builds a detector over all supported languages.
func NewLinguaClassifier() *LinguaClassifier {
	return &LinguaClassifier{
		detector: lingua.NewLanguageDetectorBuilder().FromAllLanguages().Build(),
	}
}

// Classify returns the lowercase ISO 639-1 code of the detected language.
func (c *LinguaClassifier) Classify(text string) (string, error) {
	language, ok := c.detector.DetectLanguageOf(text)
	if !ok {
		return "", ErrUndetermined
	}
	return strings.ToLower(language.IsoCode639_1().String()), nil
}
