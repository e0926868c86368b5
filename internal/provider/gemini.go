package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"google.golang.org/genai"
)

// geminiDialect speaks the streamGenerateContent protocol.
type geminiDialect struct {
	baseURL string
}

type geminiRequest struct {
	Contents          []*genai.Content `json:"contents"`
	SystemInstruction *genai.Content   `json:"systemInstruction,omitempty"`
}

// geminiRole maps chat roles onto the two roles Gemini accepts.
func geminiRole(role string) genai.Role {
	if role == RoleAssistant {
		return genai.RoleModel
	}
	return genai.RoleUser
}

func (d geminiDialect) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	body := geminiRequest{
		Contents: make([]*genai.Content, 0, len(req.Messages)),
	}
	for _, msg := range req.Messages {
		body.Contents = append(body.Contents, genai.NewContentFromText(msg.Content, geminiRole(msg.Role)))
	}
	if req.SystemPrompt != "" {
		body.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemPrompt}},
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:streamGenerateContent?key=%s&alt=sse",
		d.baseURL, url.PathEscape(req.Config.Model), url.QueryEscape(req.Config.GeminiAPIKey))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	return httpReq, nil
}

// extract reads candidates[0].content.parts[0].text.
func (geminiDialect) extract(payload []byte) (string, error) {
	var chunk genai.GenerateContentResponse
	if err := json.Unmarshal(payload, &chunk); err != nil {
		return "", err
	}
	if len(chunk.Candidates) == 0 {
		return "", nil
	}
	content := chunk.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 || content.Parts[0] == nil {
		return "", nil
	}
	return content.Parts[0].Text, nil
}
