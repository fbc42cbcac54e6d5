// Package analyzer turns pull request data into review text.
//
// Without an API key it produces a deterministic mock review, so the
// pipeline works end to end in development and in tests.
package analyzer

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/pullsense/pullsense/internal/github"
	"github.com/pullsense/pullsense/internal/model"
	"github.com/pullsense/pullsense/pkg/logger"
)

const (
	// maxPromptFiles caps how many file diffs are embedded in the prompt.
	maxPromptFiles = 5

	// maxPatchChars bounds each patch embedded in the prompt.
	maxPatchChars = 1500

	truncationMarker = "... (truncated)"

	systemPrompt = "You are a helpful code reviewer."

	defaultModel     = openai.GPT3Dot5Turbo
	defaultMaxTokens = 500
	temperature      = 0.7

	// mockModel marks reviews produced without a completion API call.
	mockModel = "mock"
)

// Config holds completion API settings.
type Config struct {
	APIKey    string
	Model     string
	MaxTokens int

	// BaseURL overrides the API endpoint, used by tests.
	BaseURL string
}

// Input is the pull request data handed to Analyze. Diff may be nil.
type Input struct {
	Title  string
	Body   string
	Author string
	Diff   *github.DiffResult
}

// Result is the outcome of one analysis.
type Result struct {
	Status       model.AnalysisStatus
	AnalysisText string
	ModelUsed    string
}

// Analyzer produces code reviews via the completion API, or a mock
// fallback when no key is configured or the API call fails.
type Analyzer struct {
	client *openai.Client
	cfg    Config
}

// New creates an Analyzer. With an empty APIKey every analysis is a mock.
func New(cfg Config) *Analyzer {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}

	a := &Analyzer{cfg: cfg}
	if cfg.APIKey != "" {
		clientCfg := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientCfg.BaseURL = cfg.BaseURL
		}
		a.client = openai.NewClientWithConfig(clientCfg)
		logger.Info("completion client initialized", zap.String("model", cfg.Model))
	} else {
		logger.Warn("no completion API key, using mock analysis")
	}
	return a
}

// Analyze reviews a pull request. It always returns usable text: API
// failures fall back to the mock review with status error.
func (a *Analyzer) Analyze(ctx context.Context, in Input) *Result {
	if a.client == nil {
		return &Result{
			Status:       model.AnalysisStatusMock,
			AnalysisText: mockAnalysis(in.Title),
			ModelUsed:    mockModel,
		}
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(in)},
		},
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: temperature,
	})
	if err != nil {
		logger.Error("completion API call failed", zap.Error(err))
		return a.errorResult(in.Title)
	}
	if len(resp.Choices) == 0 {
		logger.Error("completion API returned no choices", zap.String("model", a.cfg.Model))
		return a.errorResult(in.Title)
	}

	return &Result{
		Status:       model.AnalysisStatusCompleted,
		AnalysisText: resp.Choices[0].Message.Content,
		ModelUsed:    a.cfg.Model,
	}
}

// errorResult is the degraded outcome: mock text, error status.
func (a *Analyzer) errorResult(title string) *Result {
	return &Result{
		Status:       model.AnalysisStatusError,
		AnalysisText: mockAnalysis(title),
		ModelUsed:    mockModel,
	}
}

// buildPrompt renders the user message. Patches are truncated and the
// file list capped so the prompt stays within model context limits.
func buildPrompt(in Input) string {
	title := in.Title
	if title == "" {
		title = "No title"
	}
	body := in.Body
	if body == "" {
		body = "No description"
	}
	author := in.Author
	if author == "" {
		author = "Unknown"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Analyze this pull request:\n\n")
	fmt.Fprintf(&b, "Title: %s\n", title)
	fmt.Fprintf(&b, "Description: %s\n", body)
	fmt.Fprintf(&b, "Author: %s\n", author)

	if in.Diff != nil && len(in.Diff.Files) > 0 {
		fmt.Fprintf(&b, "\nChanged files (+%d/-%d across %d files):\n",
			in.Diff.Additions, in.Diff.Deletions, in.Diff.ChangedFiles)
		for i, f := range in.Diff.Files {
			if i >= maxPromptFiles {
				break
			}
			fmt.Fprintf(&b, "\n%s (%s, +%d/-%d):\n%s\n",
				f.Filename, f.Status, f.Additions, f.Deletions, truncatePatch(f.Patch))
		}
	}

	b.WriteString("\nProvide a brief analysis including:\n")
	b.WriteString("1. What this PR does\n")
	b.WriteString("2. Any potential issues (correctness, security, performance)\n")
	b.WriteString("3. Suggestions for improvement\n\n")
	b.WriteString("Keep it concise and constructive.")
	return b.String()
}

func truncatePatch(patch string) string {
	if len(patch) <= maxPatchChars {
		return patch
	}
	// Back the cut up to a rune boundary so non-ASCII patch text stays
	// valid UTF-8.
	cut := maxPatchChars
	for cut > 0 && !utf8.RuneStart(patch[cut]) {
		cut--
	}
	return patch[:cut] + truncationMarker
}

func mockAnalysis(title string) string {
	if title == "" {
		title = "Unknown PR"
	}
	return fmt.Sprintf("Mock analysis for '%s':\n- Looks good overall\n- Consider adding tests\n- Check error handling", title)
}
