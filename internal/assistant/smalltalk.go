package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// OllamaSmallTalker answers chit-chat through an Ollama-compatible
// /api/chat endpoint running on the local network. Only the last few
// turns are forwarded: small talk needs tone, not the whole ledger
// conversation.
type OllamaSmallTalker struct {
	baseURL string
	model   string
	client  *http.Client
}

const smallTalkHistoryDepth = 6

func NewOllamaSmallTalker(baseURL, model string) *OllamaSmallTalker {
	return &OllamaSmallTalker{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type (
	ollamaMessage struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}

	ollamaChatRequest struct {
		Model    string          `json:"model"`
		Messages []ollamaMessage `json:"messages"`
		Stream   bool            `json:"stream"`
	}

	ollamaChatResponse struct {
		Message ollamaMessage `json:"message"`
	}
)

const smallTalkSystem = "Bạn là trợ lý thân thiện của ứng dụng quản lý chi tiêu BudgetF. " +
	"Trả lời ngắn gọn bằng tiếng Việt. Nếu người dùng hỏi về tài chính cá nhân, " +
	"gợi ý họ hỏi cụ thể về chi tiêu, số dư hoặc ngân sách."

func (o *OllamaSmallTalker) Chat(ctx context.Context, history []Message, latest string) (string, error) {
	msgs := []ollamaMessage{{Role: "system", Content: smallTalkSystem}}
	start := len(history) - smallTalkHistoryDepth
	if start < 0 {
		start = 0
	}
	for _, m := range history[start:] {
		if m.Text == "" {
			continue
		}
		role := m.Role
		if role == "model" {
			role = "assistant"
		}
		msgs = append(msgs, ollamaMessage{Role: role, Content: m.Text})
	}
	msgs = append(msgs, ollamaMessage{Role: "user", Content: latest})

	body, err := json.Marshal(ollamaChatRequest{
		Model:    o.model,
		Messages: msgs,
		Stream:   false,
	})
	if err != nil {
		return "", fmt.Errorf("encode chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call small talk backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("small talk backend returned %d", resp.StatusCode)
	}

	var parsed ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	return parsed.Message.Content, nil
}
