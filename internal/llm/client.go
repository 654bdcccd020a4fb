package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/alex199571/Student-Bot/internal/config"
)

// Result is the contract a text generation returns: the answer plus the
// provider-reported token usage used for monthly settlement.
type Result struct {
	Text         string
	InputTokens  int
	OutputTokens int
	TotalTokens  int
	Model        string
}

type ImageResult struct {
	Bytes []byte
	Mime  string
	Model string
}

type Client struct {
	apiKey     string
	baseURL    string
	model      string
	imageModel string
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(cfg config.Config, log *slog.Logger) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &Client{
		apiKey:     cfg.OpenAIAPIKey,
		baseURL:    strings.TrimRight(cfg.OpenAIBaseURL, "/"),
		model:      cfg.OpenAIModel,
		imageModel: cfg.OpenAIImageModel,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// EstimateTokens is a cheap local approximation used for the pre-flight
// check; the provider's usage report is what gets billed.
func (c *Client) EstimateTokens(text string) int {
	n := len(text) / 4
	if n < 1 {
		n = 1
	}
	return n
}

type inputContent struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

type inputMessage struct {
	Role    string         `json:"role"`
	Content []inputContent `json:"content"`
}

type responsesPayload struct {
	Model           string         `json:"model"`
	Input           []inputMessage `json:"input"`
	MaxOutputTokens int            `json:"max_output_tokens"`
}

type responsesResult struct {
	Model      string `json:"model"`
	OutputText string `json:"output_text"`
	Output     []struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

// Generate runs one text completion bounded by maxOutputTokens.
func (c *Client) Generate(ctx context.Context, systemPrompt, userPrompt string, maxOutputTokens int) (*Result, error) {
	payload := responsesPayload{
		Model: c.model,
		Input: []inputMessage{
			{Role: "system", Content: []inputContent{{Type: "input_text", Text: systemPrompt}}},
			{Role: "user", Content: []inputContent{{Type: "input_text", Text: userPrompt}}},
		},
		MaxOutputTokens: maxOutputTokens,
	}
	return c.postResponses(ctx, payload, systemPrompt+userPrompt)
}

// AnalyzePhoto runs a vision completion over a publicly fetchable image URL.
func (c *Client) AnalyzePhoto(ctx context.Context, imageURL, userPrompt string, maxOutputTokens int) (*Result, error) {
	payload := responsesPayload{
		Model: c.model,
		Input: []inputMessage{
			{Role: "system", Content: []inputContent{{Type: "input_text", Text: "You analyze educational images for students."}}},
			{Role: "user", Content: []inputContent{
				{Type: "input_text", Text: userPrompt},
				{Type: "input_image", ImageURL: imageURL},
			}},
		},
		MaxOutputTokens: maxOutputTokens,
	}
	return c.postResponses(ctx, payload, userPrompt)
}

func (c *Client) postResponses(ctx context.Context, payload responsesPayload, promptForEstimate string) (*Result, error) {
	raw, err := c.post(ctx, "/responses", payload)
	if err != nil {
		return nil, err
	}

	var resp responsesResult
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode responses body: %w (body=%s)", err, truncateBody(raw))
	}

	text := resp.OutputText
	if text == "" {
		text = extractText(resp)
	}

	inputTokens := resp.Usage.InputTokens
	if inputTokens == 0 {
		inputTokens = c.EstimateTokens(promptForEstimate)
	}
	outputTokens := resp.Usage.OutputTokens
	if outputTokens == 0 {
		outputTokens = c.EstimateTokens(text)
	}
	totalTokens := resp.Usage.TotalTokens
	if totalTokens == 0 {
		totalTokens = inputTokens + outputTokens
	}

	model := resp.Model
	if model == "" {
		model = c.model
	}

	return &Result{
		Text:         text,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		TotalTokens:  totalTokens,
		Model:        model,
	}, nil
}

// GenerateImage produces one PNG for the prompt.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (*ImageResult, error) {
	payload := map[string]any{
		"model":  c.imageModel,
		"prompt": prompt,
		"size":   "1024x1024",
	}
	raw, err := c.post(ctx, "/images/generations", payload)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Model string `json:"model"`
		Data  []struct {
			B64JSON string `json:"b64_json"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode image body: %w (body=%s)", err, truncateBody(raw))
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("image provider returned no b64_json")
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("decode image data: %w", err)
	}

	model := resp.Model
	if model == "" {
		model = c.imageModel
	}
	return &ImageResult{Bytes: data, Mime: "image/png", Model: model}, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("openai api key is missing")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post openai: %w", err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode >= 300 {
		if c.log != nil {
			c.log.Error("openai request failed", "status", resp.StatusCode, "url", url, "body", truncateBody(rawBody))
		}
		return nil, fmt.Errorf("openai error: status=%d body=%s", resp.StatusCode, truncateBody(rawBody))
	}
	return rawBody, nil
}

func extractText(resp responsesResult) string {
	var chunks []string
	for _, item := range resp.Output {
		for _, content := range item.Content {
			if content.Type == "output_text" && content.Text != "" {
				chunks = append(chunks, content.Text)
			}
		}
	}
	joined := strings.TrimSpace(strings.Join(chunks, "\n"))
	if joined == "" {
		return "No response text returned."
	}
	return joined
}

func truncateBody(body []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(body))
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "…"
}
