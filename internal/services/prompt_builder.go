package services

import (
	"fmt"
	"regexp"
	"strings"
)

// PromptFlags enumerates the tutoring style switches. All default to off;
// clauses for enabled flags are appended in a fixed, stable order so prompts
// are reproducible for identical configuration.
type PromptFlags struct {
	UseSimpleLanguage  bool   `json:"use_simple_language"`
	IncludeExamples    bool   `json:"include_examples"`
	StepByStep         bool   `json:"step_by_step"`
	UseAnalogies       bool   `json:"use_analogies"`
	EncourageThinking  bool   `json:"encourage_thinking"`
	CustomInstructions string `json:"custom_instructions"`
}

// UserContext carries the caller's knowledge about the student.
type UserContext struct {
	GradeLevel string `json:"grade_level"`
}

// Subject detection triggers. Matched subjects add formatting guidance.
var (
	mathRegex      = regexp.MustCompile(`(?i)\b(equation|algebra|geometry|calculus|fraction|integral|derivative|polynomial|theorem)\b|[0-9]+\s*[-+*/^=]|数学|方程|几何`)
	physicsRegex   = regexp.MustCompile(`(?i)\b(force|velocity|acceleration|momentum|energy|gravity|voltage|circuit|newton|joule)\b|物理|力学|电路`)
	chemistryRegex = regexp.MustCompile(`(?i)\b(molecule|atom|reaction|acid|base|compound|element|mole|oxidation|electron)\b|化学|分子|反应`)
)

// PromptBuilder composes the system prompt for tutoring completions.
// Build is a pure function of its inputs.
type PromptBuilder struct {
	basePersona string
}

const defaultPersona = "You are a patient, knowledgeable tutor who helps students understand their schoolwork."

func NewPromptBuilder(basePersona string) *PromptBuilder {
	if basePersona == "" {
		basePersona = defaultPersona
	}
	return &PromptBuilder{basePersona: basePersona}
}

// Build assembles the system prompt: persona (grade-aware), style clauses in
// fixed order, optional custom instructions, subject formatting guidance from
// the question text, and the closing policy block.
func (b *PromptBuilder) Build(userCtx UserContext, flags PromptFlags, question string) string {
	var sb strings.Builder

	sb.WriteString(b.basePersona)
	if userCtx.GradeLevel != "" {
		sb.WriteString(fmt.Sprintf(" The student is at %s level; match your explanations to that level.", userCtx.GradeLevel))
	}
	sb.WriteString("\n")

	if flags.UseSimpleLanguage {
		sb.WriteString("\nUse simple language and short sentences. Avoid jargon unless you define it first.")
	}
	if flags.IncludeExamples {
		sb.WriteString("\nInclude worked examples that illustrate each concept you explain.")
	}
	if flags.StepByStep {
		sb.WriteString("\nBreak your explanation into clearly numbered steps.")
	}
	if flags.UseAnalogies {
		sb.WriteString("\nUse analogies from everyday life to make abstract ideas concrete.")
	}
	if flags.EncourageThinking {
		sb.WriteString("\nEncourage the student to think independently: ask guiding questions before revealing the full solution.")
	}
	if custom := strings.TrimSpace(flags.CustomInstructions); custom != "" {
		sb.WriteString("\n\nAdditional instructions:\n")
		sb.WriteString(custom)
	}

	if guidance := subjectGuidance(question); guidance != "" {
		sb.WriteString("\n\n")
		sb.WriteString(guidance)
	}

	sb.WriteString("\n\nAlways answer in the language of the question. Be thorough but do not pad the answer. Keep a friendly, encouraging tone.")

	return sb.String()
}

// subjectGuidance returns formatting guidance for detected subjects, in a
// fixed order so repeated builds produce identical prompts.
func subjectGuidance(question string) string {
	var parts []string
	if mathRegex.MatchString(question) {
		parts = append(parts, "This is a math question: write formulas in standard notation, show every transformation, and include at least one worked example.")
	}
	if physicsRegex.MatchString(question) {
		parts = append(parts, "This is a physics question: state the relevant laws, carry units through every step, and sanity-check the final magnitude.")
	}
	if chemistryRegex.MatchString(question) {
		parts = append(parts, "This is a chemistry question: balance all equations, name the compounds involved, and note reaction conditions.")
	}
	return strings.Join(parts, "\n")
}
