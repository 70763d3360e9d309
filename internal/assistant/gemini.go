package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"google.golang.org/genai"
)

// GeminiBackend implements Backend on the Gemini API with function
// calling enabled.
type GeminiBackend struct {
	client *genai.Client
	model  string
}

// NewGeminiBackend dials the Gemini API. The model name comes from
// configuration so deployments can move between flash and pro tiers
// without a rebuild.
func NewGeminiBackend(ctx context.Context, apiKey, model string) (*GeminiBackend, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiBackend{client: client, model: model}, nil
}

func (b *GeminiBackend) Generate(ctx context.Context, req GenerateRequest) (Turn, error) {
	contents, err := toContents(req.Messages)
	if err != nil {
		return Turn{}, err
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0.2),
	}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}
	if len(req.Tools) > 0 {
		config.Tools = []*genai.Tool{{FunctionDeclarations: toDeclarations(req.Tools)}}
	}

	resp, err := b.client.Models.GenerateContent(ctx, b.model, contents, config)
	if err != nil {
		return Turn{}, classifyGenerateError(err)
	}

	turn := Turn{Text: resp.Text()}
	for _, fc := range resp.FunctionCalls() {
		args, err := json.Marshal(fc.Args)
		if err != nil {
			return Turn{}, fmt.Errorf("encode args of %s: %w", fc.Name, err)
		}
		turn.Calls = append(turn.Calls, ToolCall{ID: fc.ID, Name: fc.Name, Args: args})
	}
	return turn, nil
}

// toContents maps conversation messages to the wire format. Model turns
// replay their function calls and tool turns answer them; the API
// rejects histories where those do not pair up.
func toContents(msgs []Message) ([]*genai.Content, error) {
	out := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case "user":
			out = append(out, &genai.Content{
				Role:  genai.RoleUser,
				Parts: []*genai.Part{{Text: m.Text}},
			})
		case "model", "assistant":
			content := &genai.Content{Role: genai.RoleModel}
			if m.Text != "" {
				content.Parts = append(content.Parts, &genai.Part{Text: m.Text})
			}
			for _, c := range m.Calls {
				var args map[string]any
				if len(c.Args) > 0 {
					if err := json.Unmarshal(c.Args, &args); err != nil {
						return nil, fmt.Errorf("decode args of %s: %w", c.Name, err)
					}
				}
				content.Parts = append(content.Parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{ID: c.ID, Name: c.Name, Args: args},
				})
			}
			if len(content.Parts) == 0 {
				continue
			}
			out = append(out, content)
		case "tool":
			content := &genai.Content{Role: genai.RoleUser}
			for _, r := range m.Results {
				content.Parts = append(content.Parts, &genai.Part{
					FunctionResponse: &genai.FunctionResponse{
						ID:       r.Call.ID,
						Name:     r.Call.Name,
						Response: map[string]any{"result": r.Payload},
					},
				})
			}
			out = append(out, content)
		default:
			return nil, fmt.Errorf("unknown message role %q", m.Role)
		}
	}
	return out, nil
}

func toDeclarations(specs []ToolSpec) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(specs))
	for _, s := range specs {
		decl := &genai.FunctionDeclaration{
			Name:        s.Name,
			Description: s.Description,
		}
		if len(s.Params) > 0 {
			props := make(map[string]*genai.Schema, len(s.Params))
			for _, p := range s.Params {
				props[p.Name] = paramSchema(p)
			}
			decl.Parameters = &genai.Schema{
				Type:       genai.TypeObject,
				Properties: props,
			}
		}
		decls = append(decls, decl)
	}
	return decls
}

func paramSchema(p Param) *genai.Schema {
	s := &genai.Schema{Description: p.Description}
	switch p.Type {
	case "integer":
		s.Type = genai.TypeInteger
	case "boolean":
		s.Type = genai.TypeBoolean
	case "array":
		s.Type = genai.TypeArray
		s.Items = &genai.Schema{Type: genai.TypeString}
		if p.Items == "integer" {
			s.Items = &genai.Schema{Type: genai.TypeInteger}
		}
	default:
		s.Type = genai.TypeString
	}
	return s
}

// classifyGenerateError separates quota rejections from everything else.
// Quota errors carry the provider's suggested retry delay when it sent
// one.
func classifyGenerateError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 || apiErr.Status == "RESOURCE_EXHAUSTED" {
			return &QuotaError{RetryAfter: retryDelayFromDetails(apiErr.Details), Err: err}
		}
		return fmt.Errorf("gemini: %w", err)
	}
	// Some transports surface quota failures as plain errors.
	msg := err.Error()
	if strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED") {
		return &QuotaError{RetryAfter: retryDelayFromText(msg), Err: err}
	}
	return fmt.Errorf("gemini: %w", err)
}

// retryDelayFromDetails reads google.rpc.RetryInfo from the error detail
// blocks. The delay arrives as a duration string like "53s".
func retryDelayFromDetails(details []map[string]any) time.Duration {
	for _, d := range details {
		t, _ := d["@type"].(string)
		if !strings.HasSuffix(t, "google.rpc.RetryInfo") {
			continue
		}
		raw, _ := d["retryDelay"].(string)
		if raw == "" {
			continue
		}
		if delay, err := time.ParseDuration(raw); err == nil && delay > 0 {
			return delay
		}
	}
	return 0
}

var retryInTextRe = regexp.MustCompile(`retry in\s+([\d.]+)s`)

// retryDelayFromText pulls "retry in 12.5s" out of a plain error string.
func retryDelayFromText(msg string) time.Duration {
	m := retryInTextRe.FindStringSubmatch(msg)
	if m == nil {
		return 0
	}
	secs, err := strconv.ParseFloat(m[1], 64)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}
