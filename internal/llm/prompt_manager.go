package llm

import (
	"bytes"
	"embed"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/123zhaozheng/gitlab-code-reviewer/internal/core"
)

//go:embed prompts/*.prompt
var promptFiles embed.FS

// ModelProvider selects a provider-specific prompt variant. Every review type
// ships a "default" variant; provider overrides are optional.
type ModelProvider string

const DefaultProvider ModelProvider = "default"

// PromptData is the template payload for one review call. Rendering is pure:
// the same data always yields the same prompt text.
type PromptData struct {
	Title        string
	Description  string
	Author       string
	SourceBranch string
	TargetBranch string
	FileCount    int
	Diff         string
}

// PromptManager loads and renders the embedded review prompt templates.
// Files are named '<review_type>_<provider>.prompt'.
type PromptManager struct {
	prompts map[core.ReviewType]map[ModelProvider]*template.Template
}

func NewPromptManager() (*PromptManager, error) {
	pm := &PromptManager{
		prompts: make(map[core.ReviewType]map[ModelProvider]*template.Template),
	}

	files, err := promptFiles.ReadDir("prompts")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded prompts directory: %w", err)
	}

	for _, file := range files {
		if file.IsDir() {
			continue
		}

		fileName := file.Name()
		baseName := strings.TrimSuffix(fileName, filepath.Ext(fileName))
		lastUnderscore := strings.LastIndex(baseName, "_")
		if lastUnderscore <= 0 || lastUnderscore == len(baseName)-1 {
			return nil, fmt.Errorf("invalid prompt filename %s (expected 'type_provider.prompt')", fileName)
		}

		reviewType, err := core.ParseReviewType(baseName[:lastUnderscore])
		if err != nil {
			return nil, fmt.Errorf("prompt file %s does not match a review type: %w", fileName, err)
		}
		provider := ModelProvider(baseName[lastUnderscore+1:])

		content, err := promptFiles.ReadFile("prompts/" + fileName)
		if err != nil {
			return nil, fmt.Errorf("failed to read embedded prompt file %s: %w", fileName, err)
		}

		if err := pm.register(reviewType, provider, string(content)); err != nil {
			return nil, fmt.Errorf("failed to register prompt from file %s: %w", fileName, err)
		}
	}

	for _, rt := range core.ReviewTypes() {
		if _, ok := pm.prompts[rt]; !ok {
			return nil, fmt.Errorf("no prompt template embedded for review type %q", rt)
		}
	}

	return pm, nil
}

func (pm *PromptManager) register(rt core.ReviewType, provider ModelProvider, content string) error {
	tmpl, err := template.New(string(rt) + "_" + string(provider)).Parse(content)
	if err != nil {
		return fmt.Errorf("could not parse template: %w", err)
	}

	if _, ok := pm.prompts[rt]; !ok {
		pm.prompts[rt] = make(map[ModelProvider]*template.Template)
	}
	pm.prompts[rt][provider] = tmpl
	return nil
}

func (pm *PromptManager) get(rt core.ReviewType, provider ModelProvider) (*template.Template, error) {
	variants, ok := pm.prompts[rt]
	if !ok {
		return nil, fmt.Errorf("no prompts found for review type %q", rt)
	}
	if tmpl, ok := variants[provider]; ok {
		return tmpl, nil
	}
	if tmpl, ok := variants[DefaultProvider]; ok {
		return tmpl, nil
	}
	return nil, fmt.Errorf("no template for review type %q and provider %q, and no default available", rt, provider)
}

// Render produces the user prompt for one review call.
func (pm *PromptManager) Render(rt core.ReviewType, provider ModelProvider, data PromptData) (string, error) {
	tmpl, err := pm.get(rt, provider)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render prompt template: %w", err)
	}
	return buf.String(), nil
}

// SystemPrompt is the fixed system message shared by all review types. It
// pins the output contract the parser relies on.
const SystemPrompt = `You are an experienced senior software engineer performing a code review on a GitLab merge request.
Respond with a single JSON object and nothing else. The object must have exactly these fields:
  "score": number from 0 to 10 rating the overall quality of the change (10 = flawless),
  "summary": short prose assessment of the change,
  "findings": array of objects, each with "severity" (one of critical, high, medium, low, info), "file", "line", "category", "message" and optional "suggestion",
  "suggestions": array of short general improvement suggestions.
Report only real problems visible in the diff. An empty findings array is a valid answer.`
