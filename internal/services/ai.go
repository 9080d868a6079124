package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/yukikurage/microtask-api/internal/constants"
	"github.com/yukikurage/microtask-api/internal/models"
	"github.com/yukikurage/microtask-api/internal/utils"
)

var (
	ErrAIServiceNotConfigured = errors.New("AI service is not configured")
	ErrAINoValidTasks         = errors.New("no valid tasks could be suggested")
)

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type AIService struct {
	client chatCompleter
	model  string
}

// SuggestedTask is a task proposal. It is never persisted by the AI service.
type SuggestedTask struct {
	Title     string   `json:"title"`
	IsRoutine bool     `json:"is_routine"`
	Days      []string `json:"days"`
}

func NewAIService(apiKey string) *AIService {
	return &AIService{
		client: openai.NewClient(apiKey),
		model:  openai.GPT4o,
	}
}

// SuggestTasks asks the model to break a goal into small daily or weekly tasks.
func (s *AIService) SuggestTasks(ctx context.Context, goal string) ([]SuggestedTask, error) {
	if s == nil || s.client == nil {
		return nil, ErrAIServiceNotConfigured
	}

	prompt := fmt.Sprintf(`You help people split a goal into small habits that take a few minutes each.

Goal:
%s

Return a JSON array with at most %d items in this shape:
[
  {
    "title": "short imperative title",
    "is_routine": true,
    "days": ["Mon", "Wed", "Fri"]
  }
]

Rules:
- Use only the day names Mon, Tue, Wed, Thu, Fri, Sat, Sun
- One-off tasks have "is_routine": false and an empty "days" array
- Return JSON only, without commentary`, goal, constants.MaxAISuggestedTasks)

	resp, err := s.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: s.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			Temperature: 0.3,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}

	content := stripCodeFence(resp.Choices[0].Message.Content)

	var suggestions []SuggestedTask
	if err := json.Unmarshal([]byte(content), &suggestions); err != nil {
		return nil, fmt.Errorf("failed to parse AI response: %w (response: %s)", err, content)
	}

	suggestions = sanitizeSuggestions(suggestions)
	if len(suggestions) == 0 {
		return nil, ErrAINoValidTasks
	}
	return suggestions, nil
}

// sanitizeSuggestions drops untitled items, normalizes day names and keeps
// routine flags consistent with the days that survive.
func sanitizeSuggestions(in []SuggestedTask) []SuggestedTask {
	valid := make(map[string]bool, len(models.Weekdays))
	for _, p := range models.Weekdays {
		valid[p.Label] = true
	}

	out := make([]SuggestedTask, 0, len(in))
	for _, suggestion := range in {
		title := strings.TrimSpace(suggestion.Title)
		if title == "" {
			continue
		}

		days := []string{}
		seen := make(map[string]bool)
		for _, day := range suggestion.Days {
			label := utils.CanonicalDayLabel(day)
			if valid[label] && !seen[label] {
				seen[label] = true
				days = append(days, label)
			}
		}

		out = append(out, SuggestedTask{
			Title:     title,
			IsRoutine: len(days) > 0,
			Days:      days,
		})
		if len(out) == constants.MaxAISuggestedTasks {
			break
		}
	}
	return out
}

func stripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}
