package llm_service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/orsolab/pdfcsv/pipeline_type"
)

const (
	defaultAPIURL     = "https://openrouter.ai/api/v1/chat/completions"
	defaultTimeout    = 120 * time.Second
	defaultMaxRetries = 5
	defaultRetryDelay = 5 * time.Second

	visionPrompt = "Extract all text from this image. Return only the text content, nothing else."

	structureSystemPrompt = "You are a helpful assistant that converts text data into CSV format. " +
		"Analyze the text and identify tabular data, lists, or structured information, " +
		"then output it as properly formatted CSV. Return ONLY the CSV data with no " +
		"markdown formatting, no code blocks, no explanations."

	structureUserPrompt = "Convert the following text into a useful CSV format. " +
		"Identify patterns and structure the data logically:\n\n%s"
)

type OpenRouterConfig struct {
	APIURL      string
	APIKey      string
	VisionModel string
	ChatModel   string
	Timeout     time.Duration
	MaxRetries  int
	RetryDelay  time.Duration
}

// OpenRouterService implements both VisionService and ChatService against the
// OpenRouter chat-completions endpoint.
type OpenRouterService struct {
	cfg        OpenRouterConfig
	httpClient *http.Client
	logger     *zap.Logger
}

func NewOpenRouterService(cfg OpenRouterConfig, logger *zap.Logger) *OpenRouterService {
	if cfg.APIURL == "" {
		cfg.APIURL = defaultAPIURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	return &OpenRouterService{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

type message struct {
	Role string `json:"role"`
	// Content is a plain string for text-only messages or []contentPart when
	// the message carries an image.
	Content interface{} `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (s *OpenRouterService) ExtractText(ctx context.Context, pagePNG []byte) (string, error) {
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pagePNG)

	req := chatRequest{
		Model: s.cfg.VisionModel,
		Messages: []message{
			{
				Role: "user",
				Content: []contentPart{
					{Type: "text", Text: visionPrompt},
					{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
				},
			},
		},
	}

	return s.call(ctx, req)
}

func (s *OpenRouterService) StructureText(ctx context.Context, text string) (string, error) {
	req := chatRequest{
		Model: s.cfg.ChatModel,
		Messages: []message{
			{Role: "system", Content: structureSystemPrompt},
			{Role: "user", Content: fmt.Sprintf(structureUserPrompt, text)},
		},
	}

	content, err := s.call(ctx, req)
	if err != nil {
		return "", err
	}
	return stripCodeFence(content), nil
}

func (s *OpenRouterService) call(ctx context.Context, payload chatRequest) (string, error) {
	if s.cfg.APIKey == "" {
		return "", pipeline_type.ConfigurationError("OpenRouter API key is not configured", nil)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("error marshaling request body: %w", err)
	}

	resp, err := s.doWithRetry(ctx, body)
	if err != nil {
		return "", pipeline_type.ExternalServiceError("language model request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", pipeline_type.ExternalServiceError("error reading language model response", err)
	}

	if resp.StatusCode != http.StatusOK {
		httpErr := newOpenRouterHttpError(resp.StatusCode, respBody)
		s.logger.Error("OpenRouter API returned an error",
			zap.String("model", payload.Model),
			zap.Int("status_code", httpErr.StatusCode),
			zap.String("message", httpErr.Message))
		return "", pipeline_type.ExternalServiceError("language model request failed", httpErr)
	}

	var result chatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", pipeline_type.ExternalServiceError("error unmarshaling language model response", err)
	}
	if len(result.Choices) == 0 {
		return "", pipeline_type.ExternalServiceError("no choices in language model response", nil)
	}

	return result.Choices[0].Message.Content, nil
}

// doWithRetry sends the request, retrying transport errors and 429 responses
// with exponential backoff. A 429 wait starts from the Retry-After header
// when the server provides one.
func (s *OpenRouterService) doWithRetry(ctx context.Context, body []byte) (*http.Response, error) {
	for attempt := 1; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.APIURL, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("error creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
		req.Header.Set("HTTP-Referer", "https://github.com/orsolab/pdfcsv")
		req.Header.Set("X-Title", "PDF OCR Service")

		resp, doErr := s.httpClient.Do(req)
		if doErr == nil && resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		wait := s.cfg.RetryDelay
		if doErr == nil {
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, perr := strconv.Atoi(ra); perr == nil && secs >= 0 {
					wait = time.Duration(secs) * time.Second
				}
			}
			resp.Body.Close()
			s.logger.Warn("OpenRouter rate limited, retrying",
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait))
		} else {
			s.logger.Warn("OpenRouter request failed, retrying",
				zap.Int("attempt", attempt),
				zap.Error(doErr))
		}

		if attempt >= s.cfg.MaxRetries {
			if doErr != nil {
				return nil, fmt.Errorf("failed to call OpenRouter API after %d attempts: %w", attempt, doErr)
			}
			return nil, fmt.Errorf("OpenRouter API rate limited after %d attempts", attempt)
		}

		backoff := wait * time.Duration(1<<(attempt-1))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}

// stripCodeFence removes a markdown code block wrapper the chat model
// sometimes adds around the CSV despite being told not to.
func stripCodeFence(content string) string {
	if !strings.Contains(content, "```") {
		return content
	}
	parts := strings.Split(content, "```")
	if len(parts) < 2 {
		return content
	}
	inner := strings.TrimPrefix(parts[1], "csv")
	return strings.TrimSpace(inner)
}
