package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"text/template"
	"unicode/utf8"
)

// MaxAnswerRunes is the longest answer passed to the model.
const MaxAnswerRunes = 10000

var (
	candidateAnswerRegex    = regexp.MustCompile(`(?i)</?\s*candidate-answer\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
)

//go:embed templates/*.txt
var templateFS embed.FS

// Variant represents a grading prompt variant.
type Variant string

const (
	// PromptStrict grades like a demanding senior interviewer.
	PromptStrict Variant = "strict"
	// PromptStandard is the default grading variant.
	PromptStandard Variant = "standard"
	// PromptLenient grades like a supportive coach.
	PromptLenient Variant = "lenient"
)

var variants = []Variant{PromptStrict, PromptStandard, PromptLenient}

// IsValidVariant checks if a prompt variant name is valid.
func IsValidVariant(v string) bool {
	for _, known := range variants {
		if Variant(v) == known {
			return true
		}
	}
	return false
}

// QuestionData holds template data for question generation prompts.
type QuestionData struct {
	Role  string
	Count int
}

// EvalData holds template data for evaluation prompts.
type EvalData struct {
	Role          string
	Question      string
	Context       string
	Hints         []string
	CorrectAnswer string
	Answer        string
}

// Set is a parsed collection of prompt templates.
type Set struct {
	questions *template.Template
	eval      map[Variant]*template.Template
}

// Load parses the embedded templates.
func Load() (*Set, error) {
	return LoadFS(templateFS)
}

// LoadFS parses templates/questions.txt and templates/eval_<variant>.txt
// from fsys.
func LoadFS(fsys fs.FS) (*Set, error) {
	s := &Set{eval: make(map[Variant]*template.Template)}

	var err error
	if s.questions, err = parseFile(fsys, "templates/questions.txt"); err != nil {
		return nil, err
	}
	for _, v := range variants {
		tmpl, err := parseFile(fsys, "templates/eval_"+string(v)+".txt")
		if err != nil {
			return nil, err
		}
		s.eval[v] = tmpl
	}
	return s, nil
}

func parseFile(fsys fs.FS, name string) (*template.Template, error) {
	content, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("read prompt file %s: %w", name, err)
	}
	tmpl, err := template.New(name).Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("parse prompt template %s: %w", name, err)
	}
	return tmpl, nil
}

// QuestionPrompt builds the question generation prompt for role.
func (s *Set) QuestionPrompt(role string, count int) (string, error) {
	var buf bytes.Buffer
	if err := s.questions.Execute(&buf, QuestionData{Role: sanitizeInline(role), Count: count}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// EvalPrompt builds an evaluation prompt using the specified variant.
func (s *Set) EvalPrompt(variant Variant, data EvalData) (string, error) {
	tmpl, ok := s.eval[variant]
	if !ok {
		return "", errors.New("invalid prompt variant: " + string(variant))
	}
	data.Role = sanitizeInline(data.Role)
	data.Answer = SanitizeAnswer(data.Answer)

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// SanitizeAnswer strips tags that could break out of the answer block,
// trims whitespace and truncates overly long answers.
func SanitizeAnswer(answer string) string {
	answer = candidateAnswerRegex.ReplaceAllString(answer, "")
	answer = systemInstructionsRegex.ReplaceAllString(answer, "")
	answer = strings.TrimSpace(answer)

	if answer == "" {
		return "[No answer provided]"
	}

	if utf8.RuneCountInString(answer) > MaxAnswerRunes {
		runes := []rune(answer)
		runes = runes[:MaxAnswerRunes]
		answer = string(runes) + "\n\n[Answer truncated due to length]"
	}

	return answer
}

func sanitizeInline(s string) string {
	s = systemInstructionsRegex.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}
