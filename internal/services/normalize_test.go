package services

import (
	"testing"
)

func TestNormalizeQuestion(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "already normalized",
			input:    "what is gravity",
			expected: "what is gravity",
		},
		{
			name:     "uppercase",
			input:    "What Is GRAVITY",
			expected: "what is gravity",
		},
		{
			name:     "leading and trailing whitespace",
			input:    "  2+2=?  ",
			expected: "2+2=?",
		},
		{
			name:     "internal whitespace runs",
			input:    "solve   x^2  \t = 4",
			expected: "solve x^2 = 4",
		},
		{
			name:     "newlines and tabs",
			input:    "explain\nphotosynthesis\tplease",
			expected: "explain photosynthesis please",
		},
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "only whitespace",
			input:    " \t\n ",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizeQuestion(tt.input)
			if result != tt.expected {
				t.Errorf("NormalizeQuestion(%q) = %q, expected %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNormalizeQuestion_Idempotent(t *testing.T) {
	inputs := []string{"  Foo   Bar ", "plain text", "MIXED case\tWITH   runs"}
	for _, in := range inputs {
		once := NormalizeQuestion(in)
		twice := NormalizeQuestion(once)
		if once != twice {
			t.Errorf("normalize not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}

func TestQuestionHash(t *testing.T) {
	if QuestionHash("  Foo   Bar") != QuestionHash("foo bar") {
		t.Error("hash must be case and whitespace insensitive")
	}
	if QuestionHash("foo bar") == QuestionHash("foo baz") {
		t.Error("different questions must hash differently")
	}

	h := QuestionHash("2+2=?")
	if len(h) != 64 {
		t.Errorf("hash length = %d, expected 64 hex chars", len(h))
	}
	// Deterministic across calls
	if h != QuestionHash("2+2=?") {
		t.Error("hash must be deterministic")
	}
}
