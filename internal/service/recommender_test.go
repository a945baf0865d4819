package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-substitute-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitute-api/pkg/errors"
)

func geminiBody(text string) map[string]interface{} {
	return map[string]interface{}{
		"candidates": []interface{}{
			map[string]interface{}{
				"content": map[string]interface{}{
					"role":  "model",
					"parts": []interface{}{map[string]interface{}{"text": text}},
				},
			},
		},
	}
}

func suggestionRequest() models.SuggestionRequest {
	return models.SuggestionRequest{
		Candidates: []models.Teacher{
			{ID: 6, Name: "Linda Wilson", Subjects: []string{"Chemistry", "Physics"}},
			{ID: 1, Name: "John Smith", Subjects: []string{"Mathematics"}},
		},
		Subject: "Physics",
		Day:     "Monday",
		Period:  2,
	}
}

type capturedGenerateRequest struct {
	Contents []struct {
		Role  string `json:"role"`
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"contents"`
	GenerationConfig struct {
		ResponseMIMEType string                 `json:"responseMimeType"`
		ResponseSchema   map[string]interface{} `json:"responseSchema"`
	} `json:"generationConfig"`
}

func newTestRecommender(t *testing.T, server *httptest.Server, model string) *GeminiRecommender {
	t.Helper()
	rec, err := NewGeminiRecommender(context.Background(), GeminiConfig{
		APIKey:     "api-key",
		Model:      model,
		BaseURL:    server.URL,
		HTTPClient: server.Client(),
	}, nil)
	require.NoError(t, err)
	return rec
}

func TestGeminiRecommenderSuggest(t *testing.T) {
	var captured capturedGenerateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/models/gemini-test:generateContent"), r.URL.Path)
		assert.Equal(t, "api-key", r.Header.Get("x-goog-api-key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(geminiBody(`{"substituteTeacherName":" Linda Wilson ","reasoning":"Teaches Physics."}`))
	}))
	defer server.Close()

	rec := newTestRecommender(t, server, "gemini-test")
	suggestion, err := rec.Suggest(context.Background(), suggestionRequest())
	require.NoError(t, err)
	assert.Equal(t, "Linda Wilson", suggestion.SubstituteName)
	assert.Equal(t, "Teaches Physics.", suggestion.Reasoning)
	assert.Equal(t, models.SuggestionSourceAI, suggestion.Source)

	require.Len(t, captured.Contents, 1)
	require.Len(t, captured.Contents[0].Parts, 1)
	prompt := captured.Contents[0].Parts[0].Text
	assert.Contains(t, prompt, "Subject of the class: Physics")
	assert.Contains(t, prompt, "Monday, Period 2")
	assert.Contains(t, prompt, `"name": "Linda Wilson"`)
	assert.Equal(t, "application/json", captured.GenerationConfig.ResponseMIMEType)
	assert.Contains(t, captured.GenerationConfig.ResponseSchema, "properties")
}

func TestGeminiRecommenderFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   interface{}
	}{
		{name: "upstream rejects", status: http.StatusBadRequest, body: map[string]interface{}{"error": map[string]interface{}{"code": 400, "message": "bad request", "status": "INVALID_ARGUMENT"}}},
		{name: "no candidates", status: http.StatusOK, body: map[string]interface{}{"candidates": []interface{}{}}},
		{name: "answer not json", status: http.StatusOK, body: geminiBody("Linda Wilson, obviously")},
		{name: "empty name", status: http.StatusOK, body: geminiBody(`{"substituteTeacherName":"  ","reasoning":"none"}`)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_ = json.NewEncoder(w).Encode(tc.body)
			}))
			defer server.Close()

			rec := newTestRecommender(t, server, "")
			_, err := rec.Suggest(context.Background(), suggestionRequest())
			require.ErrorIs(t, err, appErrors.ErrRecommenderUnavailable)
		})
	}
}

func TestGeminiRecommenderHonoursContext(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	rec := newTestRecommender(t, server, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := rec.Suggest(ctx, suggestionRequest())
	require.ErrorIs(t, err, appErrors.ErrRecommenderUnavailable)
}
