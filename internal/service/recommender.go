package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/noah-isme/sma-substitute-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitute-api/pkg/errors"
)

// Recommender picks a substitute from an already filtered candidate list.
// Its answer is advisory.
type Recommender interface {
	Suggest(ctx context.Context, req models.SuggestionRequest) (*models.Suggestion, error)
}

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiConfig configures the Gemini client. BaseURL is empty in production.
type GeminiConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// GeminiRecommender asks Gemini for a substitute using a JSON response schema.
type GeminiRecommender struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

// NewGeminiRecommender builds a recommender on the Gemini API backend. Calls
// are bounded through the ctx passed to Suggest.
func NewGeminiRecommender(ctx context.Context, cfg GeminiConfig, logger *zap.Logger) (*GeminiRecommender, error) {
	if cfg.Model == "" {
		cfg.Model = defaultGeminiModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  cfg.HTTPClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiRecommender{client: client, model: cfg.Model, logger: logger}, nil
}

type geminiSuggestion struct {
	SubstituteTeacherName string `json:"substituteTeacherName"`
	Reasoning             string `json:"reasoning"`
}

var geminiResponseSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"substituteTeacherName": {Type: genai.TypeString, Description: "Name of the chosen teacher, exactly as listed."},
		"reasoning":             {Type: genai.TypeString, Description: "One or two sentences explaining the choice."},
	},
	Required: []string{"substituteTeacherName", "reasoning"},
}

// Suggest implements Recommender. Only the name and reasoning are filled in;
// the caller maps the name back onto its candidate list.
func (g *GeminiRecommender) Suggest(ctx context.Context, req models.SuggestionRequest) (*models.Suggestion, error) {
	prompt, err := buildSuggestionPrompt(req)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrRecommenderUnavailable.Code, appErrors.ErrRecommenderUnavailable.Status, "failed to build prompt")
	}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   geminiResponseSchema,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrRecommenderUnavailable.Code, appErrors.ErrRecommenderUnavailable.Status, "recommender request failed")
	}
	g.logger.Debug("recommender responded", zap.String("model", g.model), zap.Duration("elapsed", time.Since(start)))

	text := strings.TrimSpace(responseText(resp))
	if text == "" {
		return nil, appErrors.Clone(appErrors.ErrRecommenderUnavailable, "recommender returned no content")
	}
	var answer geminiSuggestion
	if err := json.Unmarshal([]byte(text), &answer); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrRecommenderUnavailable.Code, appErrors.ErrRecommenderUnavailable.Status, "recommender answer is not JSON")
	}
	if strings.TrimSpace(answer.SubstituteTeacherName) == "" {
		return nil, appErrors.Clone(appErrors.ErrRecommenderUnavailable, "recommender answer names nobody")
	}
	return &models.Suggestion{
		SubstituteName: strings.TrimSpace(answer.SubstituteTeacherName),
		Reasoning:      strings.TrimSpace(answer.Reasoning),
		Source:         models.SuggestionSourceAI,
	}, nil
}

// responseText joins the text parts of the first candidate, skipping thoughts.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		b.WriteString(part.Text)
	}
	return b.String()
}

type promptCandidate struct {
	Name     string   `json:"name"`
	Subjects []string `json:"subjects"`
}

func buildSuggestionPrompt(req models.SuggestionRequest) (string, error) {
	candidates := make([]promptCandidate, 0, len(req.Candidates))
	for _, t := range req.Candidates {
		candidates = append(candidates, promptCandidate{Name: t.Name, Subjects: t.Subjects})
	}
	list, err := json.MarshalIndent(candidates, "", "  ")
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("You are a timetable assistant for a college. Pick the best substitute teacher.\n\n")
	fmt.Fprintf(&b, "Subject of the class: %s\n", req.Subject)
	fmt.Fprintf(&b, "Day and period: %s, Period %d\n\n", req.Day, req.Period)
	b.WriteString("Teachers who are free at that time:\n")
	b.Write(list)
	fmt.Fprintf(&b, "\n\nPrefer teachers whose subjects include %q. Choose only from the list above and give a short reason.\n", req.Subject)
	b.WriteString("Respond with only a JSON object matching the required schema.\n")
	return b.String(), nil
}
