package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ignatzorin/ecocoin-market/internal/models"
)

const systemPrompt = `Ты оценщик б/у вещей на маркетплейсе EcoCoins. ` +
	`Оцени справедливую цену вещи в EcoCoins (целое число, 1 EcoCoin примерно равен 1 рублю) ` +
	`и кратко объясни оценку. Ответь только JSON вида {"price": 1234, "narrative": "..."}.`

// Client клиент сервиса оценки через OpenAI-совместимый API.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewClient создаёт экземпляр клиента.
func NewClient(baseURL, model, apiKey string) *Client {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// SuggestPrice запрашивает оценку цены объявления.
func (c *Client) SuggestPrice(ctx context.Context, in models.ValuationRequest) (*models.PriceSuggestion, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("ai: baseURL не задан")
	}

	userPrompt := fmt.Sprintf("Название: %s\nКатегория: %s\nСостояние: %s\nОписание: %s",
		in.Title, in.Category, in.Condition, in.Description)

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature:    0.2,
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ai: запрос оценки: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ai: код ответа %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("ai: не удалось разобрать ответ: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("ai: пустой ответ")
	}

	return parseSuggestion(parsed.Choices[0].Message.Content)
}

// parseSuggestion извлекает JSON из ответа модели, в том числе обёрнутый в ```json.
func parseSuggestion(content string) (*models.PriceSuggestion, error) {
	content = strings.TrimSpace(content)
	if start := strings.Index(content, "{"); start >= 0 {
		if end := strings.LastIndex(content, "}"); end > start {
			content = content[start : end+1]
		}
	}

	var raw struct {
		Price     json.Number `json:"price"`
		Narrative string      `json:"narrative"`
	}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("ai: ответ не в формате JSON: %w", err)
	}

	price, err := raw.Price.Float64()
	if err != nil || price < 1 {
		return nil, fmt.Errorf("ai: некорректная цена в ответе: %q", raw.Price)
	}

	return &models.PriceSuggestion{
		Price:     int64(price),
		Narrative: strings.TrimSpace(raw.Narrative),
	}, nil
}
