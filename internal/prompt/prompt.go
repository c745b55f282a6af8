// Package prompt assembles the text sent to the language model and reads the
// structured reply back.
package prompt

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"text/template"
)

// Intent keywords the model is asked to choose from.
const (
	IntentFixedBug                = "Fixed Bug"
	IntentImprovedInternalQuality = "Improved Internal Quality"
	IntentImprovedExternalQuality = "Improved External Quality"
	IntentFeatureUpdate           = "Feature Update"
	IntentCodeSmellResolution     = "Code Smell Resolution"
)

// Intents lists every accepted intent in canonical order.
var Intents = []string{
	IntentFixedBug,
	IntentImprovedInternalQuality,
	IntentImprovedExternalQuality,
	IntentFeatureUpdate,
	IntentCodeSmellResolution,
}

// NoRefactoringSuffix is appended to summaries of commits without refactorings.
const NoRefactoringSuffix = " INSTRUCTION: No Refactoring Detected"

var intentChoices = strings.Join(Intents, ", ")

var commitURLTmpl = template.Must(template.New("commit-url").Parse(
	`You are an expert software engineer trained in commit summarization.
Given a code diff or commit URL, go through the entire changes, and extract a meaningful summary using this structure. If the url is given go the URL and extract information:

MANDATORY FORMAT:
SUMMARY: A concise technical description of the change (1–2 lines max),
INTENT: One of: {{.Intents}},
IMPACT: Describe how this affects performance, maintainability, readability, modularity, or usability,

You MUST include all three sections. Always use the specified keywords for INTENT.

Example:
SUMMARY: Replaced nested loops with a hash-based lookup in UserProcessor.java.
INTENT: Improved Internal Quality.
IMPACT: Reduced time complexity from O(n^2) to O(n), improving efficiency and code clarity.

Now, generate the structured summary for:
URL: {{.URL}}`))

var refactoringsTmpl = template.Must(template.New("refactorings").Parse(
	`You are an AI software engineer trained in code refactoring analysis and commit summarization.
You are given a list of refactorings extracted from a commit. Create a concise summary that includes:

SUMMARY: Describe the core refactorings made (1–2 lines),
INTENT: Choose from: {{.Intents}},
IMPACT: Explain how these changes improve modularity, maintainability, readability, or other software quality attributes,

MANDATORY FORMAT:
SUMMARY: A concise technical description of the change (1–2 lines max),
INTENT: One of: {{.Intents}},
IMPACT: Explain how these changes improve software quality attributes and how this affects performance, maintainability, readability, modularity, or usability,

Example:
SUMMARY: Extracted method validateInput() and renamed CustomerDTO to ClientDTO,
INTENT: Improved Internal Quality,
IMPACT: Improves code modularity and naming clarity for better long-term maintainability,

Refactorings:
{{.Refactorings}}`))

var changesTmpl = template.Must(template.New("changes").Parse(
	`You are an expert software engineer trained in commit summarization.
Given a code text extracted from a commit page, go through the entire changes, and extract a meaningful summary using this structure.

MANDATORY FORMAT:
SUMMARY: A concise technical description of the change (1–2 lines max),
INTENT: All the ones which apply: {{.Intents}},
IMPACT: Describe how this affects performance, maintainability, readability, modularity, or usability.

You MUST include all three sections. Always use the specified keywords for INTENT.
Here is an example response:
SUMMARY: Replaced nested loops with a hash-based lookup in UserProcessor.java.
INTENT: Improved Internal Quality, Fixed Bug
IMPACT: Reduced time complexity from O(n^2) to O(n), improving efficiency and code clarity.

{{.Changes}}`))

var questionWithContextTmpl = template.Must(template.New("question-context").Parse(
	`
Question: {{.Question}}
Context: {{.Context}}
`))

func render(t *template.Template, data any) string {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		// Templates are static and data is plain strings.
		panic(fmt.Sprintf("rendering %s prompt: %v", t.Name(), err))
	}
	return buf.String()
}

// CommitFromURL asks for a structured summary of the commit behind url.
func CommitFromURL(url string) string {
	return render(commitURLTmpl, struct{ Intents, URL string }{intentChoices, url})
}

// CommitFromRefactorings asks for a structured summary of detected refactorings.
// refactorings is the numbered list produced by the refactoring miner.
func CommitFromRefactorings(refactorings string) string {
	return render(refactoringsTmpl, struct{ Intents, Refactorings string }{intentChoices, refactorings})
}

// CommitFromChanges asks for a structured summary of a diff or scraped page.
func CommitFromChanges(changes string) string {
	return render(changesTmpl, struct{ Intents, Changes string }{intentChoices, strings.TrimSpace(changes)})
}

// WithRepositoryContext appends a repository summary to p. An empty excerpt
// leaves p unchanged.
func WithRepositoryContext(p, excerpt string) string {
	excerpt = strings.TrimSpace(excerpt)
	if excerpt == "" {
		return p
	}
	return p + "\n\nRepository context (use it to judge the intent and impact, do not summarize it):\n" +
		"<repository-summary>\n" + excerpt + "\n</repository-summary>"
}

// WithChanges appends commit changes fetched from the hosting service to p.
func WithChanges(p, changes string) string {
	changes = strings.TrimSpace(changes)
	if changes == "" {
		return p
	}
	return p + "\n\nCommit changes:\n<changes>\n" + changes + "\n</changes>"
}

// Question is the prompt for a plain question.
func Question(q string) string {
	return "Question: " + q
}

// QuestionWithContext is the prompt for a question with retrieved documents.
func QuestionWithContext(q string, docs []string) string {
	return render(questionWithContextTmpl, struct{ Question, Context string }{q, strings.Join(docs, "\n\n")})
}

// InstructionSuffix renders per-type refactoring counts, sorted by type.
func InstructionSuffix(counts map[string]int) string {
	if len(counts) == 0 {
		return NoRefactoringSuffix
	}
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Strings(types)

	var b strings.Builder
	b.WriteString(" INSTRUCTION: ")
	for _, t := range types {
		fmt.Fprintf(&b, "%d %s  ", counts[t], t)
	}
	return b.String()
}

// Structured is a parsed model reply.
type Structured struct {
	Summary string   `json:"summary" yaml:"summary"`
	Intents []string `json:"intents" yaml:"intents"`
	Impact  string   `json:"impact" yaml:"impact"`
}

var sectionRe = regexp.MustCompile(`(?i)\b(SUMMARY|INTENT|IMPACT|INSTRUCTION)\s*:`)

// ParseStructured reads the SUMMARY, INTENT and IMPACT sections from text.
// Sections may share a line. Intent keywords outside the accepted set are
// dropped.
func ParseStructured(text string) Structured {
	var s Structured
	locs := sectionRe.FindAllStringSubmatchIndex(text, -1)
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		body := cleanSection(text[loc[1]:end])
		switch strings.ToUpper(text[loc[2]:loc[3]]) {
		case "SUMMARY":
			if s.Summary == "" {
				s.Summary = body
			}
		case "INTENT":
			if s.Intents == nil {
				s.Intents = matchIntents(body)
			}
		case "IMPACT":
			if s.Impact == "" {
				s.Impact = body
			}
		}
	}
	return s
}

func cleanSection(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, ",")
	return strings.TrimSpace(s)
}

func matchIntents(body string) []string {
	lower := strings.ToLower(body)
	type hit struct {
		intent string
		pos    int
	}
	var hits []hit
	for _, intent := range Intents {
		if i := strings.Index(lower, strings.ToLower(intent)); i >= 0 {
			hits = append(hits, hit{intent, i})
		}
	}
	sort.Slice(hits, func(a, b int) bool { return hits[a].pos < hits[b].pos })

	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.intent)
	}
	return out
}

// Markdown renders s for terminal display.
func (s Structured) Markdown() string {
	var b strings.Builder
	if s.Summary != "" {
		fmt.Fprintf(&b, "**Summary:** %s\n\n", s.Summary)
	}
	if len(s.Intents) > 0 {
		fmt.Fprintf(&b, "**Intent:** %s\n\n", strings.Join(s.Intents, ", "))
	}
	if s.Impact != "" {
		fmt.Fprintf(&b, "**Impact:** %s\n", s.Impact)
	}
	return b.String()
}
