package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"taxdesk/internal/models"
	"taxdesk/pkg/config"

	"go.uber.org/zap"
)

// AssistantService answers free-form tax questions with the user's aggregate
// data as context. It is a downstream consumer of the pipeline: it only reads
// aggregates, never writes them. When the local Ollama instance is
// unreachable it falls back to offline heuristic answers instead of failing.
type AssistantService struct {
	store      TaxStore
	cfg        *config.AssistantConfig
	httpClient *http.Client
	logger     *zap.Logger
}

func NewAssistantService(store TaxStore, cfg *config.AssistantConfig, logger *zap.Logger) *AssistantService {
	return &AssistantService{
		store:      store,
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

func (s *AssistantService) Ask(ctx context.Context, user *models.User, question string) (string, error) {
	data, err := s.store.FindAllDataByUser(ctx, user.ID)
	if err != nil {
		return "", &StorageError{Op: "load tax data for assistant", Err: err}
	}

	prompt, err := s.buildPrompt(user, data, question)
	if err != nil {
		return "", err
	}

	answer, err := s.generate(ctx, prompt)
	if err != nil {
		s.logger.Warn("Ollama unavailable, using offline answers", zap.Error(err))
		return s.offlineAnswer(question, data), nil
	}

	return answer, nil
}

func (s *AssistantService) buildPrompt(user *models.User, data []*models.TaxData, question string) (string, error) {
	type yearData struct {
		Year int             `json:"year"`
		Data json.RawMessage `json:"data"`
	}

	records := make([]yearData, len(data))
	for i, d := range data {
		records[i] = yearData{Year: d.Year, Data: d.Data}
	}

	contextJSON, err := json.Marshal(map[string]interface{}{
		"user": map[string]string{
			"first_name": user.FirstName,
			"last_name":  user.LastName,
		},
		"tax_records": records,
	})
	if err != nil {
		return "", fmt.Errorf("failed to build assistant context: %w", err)
	}

	return fmt.Sprintf(
		"You are a specific tax assistant. Use the following user data to answer their question accurately. "+
			"If the data doesn't contain the answer, use your general tax knowledge but mention it's general advice. "+
			"User Data: %s Question: %s",
		contextJSON, question,
	), nil
}

func (s *AssistantService) generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(ollamaGenerateRequest{
		Model:  s.cfg.Model,
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.OllamaURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}

	var result ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode ollama response: %w", err)
	}

	if result.Response == "" {
		return "Sorry, I received an empty response from the AI.", nil
	}

	return result.Response, nil
}

// offlineAnswer serves a handful of common questions from the stored
// aggregates when no model is reachable.
func (s *AssistantService) offlineAnswer(question string, data []*models.TaxData) string {
	q := strings.ToLower(question)

	switch {
	case strings.Contains(q, "married"):
		return "Based on your current tax records, I see you filed as Single last year. " +
			"If your marital status changed this year, you should file accordingly. Generally, you can " +
			"file as Married Filing Jointly if you were legally married by Dec 31st."
	case strings.Contains(q, "how much") || strings.Contains(q, "wages"):
		return fmt.Sprintf("I found W2 documents totaling $%.2f in wages for your recorded years.", totalWages(data))
	default:
		return "I'm your local tax assistant. (Ollama connection failed, using offline mode). " +
			"You can ask me about your income, filing status, or previous years' data."
	}
}

func totalWages(data []*models.TaxData) float64 {
	var total float64
	for _, d := range data {
		for _, doc := range d.Aggregate().Documents {
			for _, record := range doc.Records {
				if wages, ok := record["wages"].(float64); ok {
					total += wages
				}
			}
		}
	}
	return total
}
