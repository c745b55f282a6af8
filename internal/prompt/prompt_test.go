package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommitFromURL(t *testing.T) {
	p := CommitFromURL("https://github.com/octo/demo/commit/abc123")
	assert.Contains(t, p, "MANDATORY FORMAT:")
	assert.Contains(t, p, "One of: Fixed Bug, Improved Internal Quality, Improved External Quality, Feature Update, Code Smell Resolution")
	assert.True(t, strings.HasSuffix(p, "URL: https://github.com/octo/demo/commit/abc123"))
}

func TestCommitFromRefactorings(t *testing.T) {
	p := CommitFromRefactorings("1. Extract Method foo()\n2. Rename Class A to B\n")
	assert.Contains(t, p, "Refactorings:\n1. Extract Method foo()")
	assert.Contains(t, p, "Choose from: Fixed Bug")
}

func TestCommitFromChanges(t *testing.T) {
	p := CommitFromChanges("\n  src/main.go\n+ added line\n")
	assert.Contains(t, p, "All the ones which apply")
	assert.True(t, strings.HasSuffix(p, "src/main.go\n+ added line"))
}

func TestWithRepositoryContext(t *testing.T) {
	base := "PROMPT"
	assert.Equal(t, base, WithRepositoryContext(base, "   "))

	got := WithRepositoryContext(base, "A URL shortener.\n")
	assert.True(t, strings.HasPrefix(got, "PROMPT\n\n"))
	assert.Contains(t, got, "<repository-summary>\nA URL shortener.\n</repository-summary>")
}

func TestWithChanges(t *testing.T) {
	assert.Equal(t, "P", WithChanges("P", ""))
	assert.Contains(t, WithChanges("P", "diff --git a b"), "<changes>\ndiff --git a b\n</changes>")
}

func TestQuestionTemplates(t *testing.T) {
	assert.Equal(t, "Question: what is CBO?", Question("what is CBO?"))
	got := QuestionWithContext("what is CBO?", []string{"doc one", "doc two"})
	assert.Equal(t, "\nQuestion: what is CBO?\nContext: doc one\n\ndoc two\n", got)
}

func TestInstructionSuffix(t *testing.T) {
	assert.Equal(t, " INSTRUCTION: No Refactoring Detected", InstructionSuffix(nil))
	got := InstructionSuffix(map[string]int{"Rename Method": 2, "Extract Method": 1})
	assert.Equal(t, " INSTRUCTION: 1 Extract Method  2 Rename Method  ", got)
}

func TestParseStructuredMultiline(t *testing.T) {
	reply := `SUMMARY: Replaced nested loops with a map lookup.
INTENT: Improved Internal Quality, Fixed Bug
IMPACT: Faster lookups and clearer code.`
	s := ParseStructured(reply)
	assert.Equal(t, "Replaced nested loops with a map lookup.", s.Summary)
	assert.Equal(t, []string{IntentImprovedInternalQuality, IntentFixedBug}, s.Intents)
	assert.Equal(t, "Faster lookups and clearer code.", s.Impact)
}

func TestParseStructuredSingleLineWithSuffix(t *testing.T) {
	reply := "summary: Renamed Foo to Bar, intent: feature update, Quantum Leap, impact: clearer naming," + NoRefactoringSuffix
	s := ParseStructured(reply)
	assert.Equal(t, "Renamed Foo to Bar", s.Summary)
	assert.Equal(t, []string{IntentFeatureUpdate}, s.Intents)
	assert.Equal(t, "clearer naming", s.Impact)
}

func TestParseStructuredNoSections(t *testing.T) {
	s := ParseStructured("I could not open the URL.")
	assert.Empty(t, s.Summary)
	assert.Empty(t, s.Intents)
	assert.Empty(t, s.Impact)
}

func TestStructuredMarkdown(t *testing.T) {
	md := Structured{Summary: "s", Intents: []string{IntentFixedBug}, Impact: "i"}.Markdown()
	assert.Equal(t, "**Summary:** s\n\n**Intent:** Fixed Bug\n\n**Impact:** i\n", md)
}
