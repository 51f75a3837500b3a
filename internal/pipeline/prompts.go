package pipeline

import (
	"fmt"
	"strings"
	"text/template"
)

const (
	DefaultRequirementsPrompt = "Generate requirements for a product whose brief description is : " +
		"{{.ProductDescription}} Whose users are: {{.UserDescription}} " +
		"Whose product requirements document is: {{.Chunk}}"

	DefaultTestCasesPrompt = "Generate test cases for a product whose requirements are : {{.Chunk}}"
)

// PromptData is the template input for one chunk.
type PromptData struct {
	ProductDescription string
	UserDescription    string
	Chunk              string
}

type Prompts struct {
	Requirements *template.Template
	TestCases    *template.Template
}

func DefaultPrompts() Prompts {
	p, err := ParsePrompts(DefaultRequirementsPrompt, DefaultTestCasesPrompt)
	if err != nil {
		panic(err)
	}

	return p
}

// ParsePrompts parses both templates. Blank sources fall back to the defaults.
func ParsePrompts(requirements string, testCases string) (Prompts, error) {
	if strings.TrimSpace(requirements) == "" {
		requirements = DefaultRequirementsPrompt
	}
	if strings.TrimSpace(testCases) == "" {
		testCases = DefaultTestCasesPrompt
	}

	req, err := template.New("requirements").Option("missingkey=error").Parse(requirements)
	if err != nil {
		return Prompts{}, fmt.Errorf("parse requirements prompt: %w", err)
	}

	tc, err := template.New("test_cases").Option("missingkey=error").Parse(testCases)
	if err != nil {
		return Prompts{}, fmt.Errorf("parse test cases prompt: %w", err)
	}

	return Prompts{Requirements: req, TestCases: tc}, nil
}

// PromptFunc renders the prompt for a single chunk of text.
type PromptFunc func(chunk string) (string, error)

func render(t *template.Template, data PromptData) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("execute %s template: %w", t.Name(), err)
	}

	return b.String(), nil
}

func (p Prompts) requirementsFunc(in PromptData) PromptFunc {
	return func(chunk string) (string, error) {
		data := in
		data.Chunk = chunk
		return render(p.Requirements, data)
	}
}

func (p Prompts) testCasesFunc(in PromptData) PromptFunc {
	return func(chunk string) (string, error) {
		data := in
		data.Chunk = chunk
		return render(p.TestCases, data)
	}
}
