package reconcile

import (
	"fmt"
	"strings"

	"github.com/jackzampolin/namefind/internal/config"
	"github.com/jackzampolin/namefind/internal/decode"
	"github.com/jackzampolin/namefind/internal/detect"
	"github.com/jackzampolin/namefind/internal/document"
	"github.com/jackzampolin/namefind/internal/types"
)

// ConfigurationError reports a precondition that stops a detection cycle
// before any job is scheduled.
type ConfigurationError struct {
	Message string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func configError(err error, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Message: fmt.Sprintf(format, args...), Err: err}
}

// BuildParams validates the detection settings against the document and
// assembles the parameters of one run. verified is dropped unless recall
// boosting is enabled. resolve maps configured model paths to files and may
// be nil.
func BuildParams(s config.DetectionCfg, doc *document.Document, verified []detect.Verified, resolve func(string) string) (detect.Params, error) {
	if len(s.EntityTypes) == 0 {
		return detect.Params{}, configError(nil, "no entity types configured")
	}
	for i, name := range s.EntityTypes {
		if strings.TrimSpace(name) == "" {
			return detect.Params{}, configError(nil, "entity type %d is empty", i+1)
		}
	}

	if strings.TrimSpace(s.SentenceType) == "" {
		return detect.Params{}, configError(nil, "no sentence type configured")
	}
	sentenceTypes := append([]string{s.SentenceType}, s.AdditionalSentenceTypes...)
	var sentences []types.Span
	for _, name := range sentenceTypes {
		if strings.TrimSpace(name) == "" {
			return detect.Params{}, configError(nil, "additional sentence type is empty")
		}
		t, err := doc.ResolveType(name)
		if err != nil {
			return detect.Params{}, configError(err, "cannot resolve sentence type %q", name)
		}
		for _, a := range doc.Annotations(t) {
			sentences = append(sentences, a.Span)
		}
	}

	if strings.TrimSpace(s.TokenType) == "" {
		return detect.Params{}, configError(nil, "no token type configured")
	}
	tokenType, err := doc.ResolveType(s.TokenType)
	if err != nil {
		return detect.Params{}, configError(err, "cannot resolve token type %q", s.TokenType)
	}

	if len(s.ModelPaths) == 0 {
		return detect.Params{}, configError(nil, "no model paths configured")
	}
	if len(s.ModelPaths) != len(s.EntityTypes) {
		return detect.Params{}, configError(nil, "%d model paths configured for %d entity types",
			len(s.ModelPaths), len(s.EntityTypes))
	}
	models := make([]decode.ModelSpec, len(s.ModelPaths))
	for i, p := range s.ModelPaths {
		if strings.TrimSpace(p) == "" {
			return detect.Params{}, configError(nil, "model path for entity type %q is empty", s.EntityTypes[i])
		}
		if resolve != nil {
			p = resolve(p)
		}
		models[i] = decode.ModelSpec{Path: p, Type: s.EntityTypes[i]}
	}

	if len(sentences) == 0 {
		return detect.Params{}, configError(nil, "document has no annotations of sentence type %q", s.SentenceType)
	}
	tokenAnns := doc.Annotations(tokenType)
	if len(tokenAnns) == 0 {
		return detect.Params{}, configError(nil, "document has no annotations of token type %q", s.TokenType)
	}
	tokens := make([]types.Span, len(tokenAnns))
	for i, a := range tokenAnns {
		tokens[i] = a.Span
	}

	p := detect.Params{
		Models:    models,
		Text:      doc.Text(),
		Sentences: sentences,
		Tokens:    tokens,
		Filter: detect.TokenFilter{
			IgnoreShort:        s.IgnoreShortTokens,
			OnlyAllLetters:     s.OnlyAllLetterTokens,
			OnlyInitialCapital: s.OnlyInitialCapitalTokens,
		},
	}
	if s.RecallBoosting {
		p.Verified = verified
	}
	return p, nil
}
