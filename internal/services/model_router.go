package services

import (
	"regexp"
	"unicode/utf8"
)

// Questions shorter than this with no complexity markers go to the cheap model.
const shortQuestionThreshold = 100

// complexityRegex marks questions that need the capable model even when
// short: computation, proofs, derivations and their Chinese equivalents.
var complexityRegex = regexp.MustCompile(
	`(?i)\b(calculate|solve|prove|derive|integrate|differentiate|simplify)\b` +
		`|explain (in detail|step by step)` +
		`|计算|求解|证明|推导|详细解释`)

// ResponseFormat selects the completion output mode.
type ResponseFormat string

const (
	FormatText ResponseFormat = "text"
	FormatJSON ResponseFormat = "json"
)

// ModelRouter picks a model tier from the request shape. Pure classification,
// deterministic for identical inputs.
type ModelRouter struct {
	cheapModel   string
	capableModel string
}

func NewModelRouter(cheapModel, capableModel string) *ModelRouter {
	return &ModelRouter{cheapModel: cheapModel, capableModel: capableModel}
}

// SelectModel routes a request to a model tier. Decision order:
// images need the vision-capable model; structured output needs the
// precision model; short questions without complexity markers can use
// the cheap model; everything else gets the capable model.
func (r *ModelRouter) SelectModel(question string, hasImages bool, format ResponseFormat) string {
	if hasImages {
		return r.capableModel
	}
	if format == FormatJSON {
		return r.capableModel
	}
	// Length is counted in runes so multi-byte scripts are not penalized.
	if utf8.RuneCountInString(question) < shortQuestionThreshold && !complexityRegex.MatchString(question) {
		return r.cheapModel
	}
	return r.capableModel
}
