package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/naphat-c/nacc-digitizer/internal/models"
)

// Config 外部理解服务客户端配置
type Config struct {
	Endpoint        string
	APIKey          string
	Model           string
	Temperature     float64
	TopP            float64
	TopK            int
	MaxOutputTokens int
	Timeout         time.Duration
}

// DefaultConfig 返回默认客户端配置
func DefaultConfig() *Config {
	return &Config{
		Endpoint:        "https://generativelanguage.googleapis.com/v1beta",
		Model:           "gemini-2.5-flash",
		Temperature:     0.1, // 低温度保证提取一致性
		TopP:            0.95,
		TopK:            40,
		MaxOutputTokens: 65536,
		Timeout:         120 * time.Second,
	}
}

// Client 调用外部文档理解服务
// 错误分级在这里完成:429/5xx/网络 → transient,拒答/空候选 → blocked
type Client struct {
	config     *Config
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*generateResponse]
}

// NewClient 创建服务客户端,熔断打开时按瞬时错误处理
func NewClient(cfg *Config) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	breaker := gobreaker.NewCircuitBreaker[*generateResponse](gobreaker.Settings{
		Name:        "genai",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    breaker,
	}
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"topP"`
	TopK            int     `json:"topK"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type safetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
	SafetySettings   []safetySetting  `json:"safetySettings,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// 公共数据属于政府信息公开范畴,避免误触安全拦截
func defaultSafetySettings() []safetySetting {
	categories := []string{
		"HARM_CATEGORY_HARASSMENT",
		"HARM_CATEGORY_HATE_SPEECH",
		"HARM_CATEGORY_SEXUALLY_EXPLICIT",
		"HARM_CATEGORY_DANGEROUS_CONTENT",
	}
	settings := make([]safetySetting, 0, len(categories))
	for _, c := range categories {
		settings = append(settings, safetySetting{Category: c, Threshold: "BLOCK_NONE"})
	}
	return settings
}

// GenerateFromImages 一次调用提交全部页面图像
func (c *Client) GenerateFromImages(ctx context.Context, prompt string, images [][]byte) (string, error) {
	parts := make([]part, 0, len(images)+1)
	parts = append(parts, part{Text: prompt})
	for _, img := range images {
		parts = append(parts, part{InlineData: &inlineData{
			MimeType: "image/jpeg",
			Data:     base64.StdEncoding.EncodeToString(img),
		}})
	}
	return c.generate(ctx, parts)
}

// GenerateFromText 提交已抽取的文本
func (c *Client) GenerateFromText(ctx context.Context, prompt, text string) (string, error) {
	parts := []part{{Text: prompt}, {Text: text}}
	return c.generate(ctx, parts)
}

func (c *Client) generate(ctx context.Context, parts []part) (string, error) {
	reqBody := generateRequest{
		Contents: []content{{Parts: parts}},
		GenerationConfig: generationConfig{
			Temperature:     c.config.Temperature,
			TopP:            c.config.TopP,
			TopK:            c.config.TopK,
			MaxOutputTokens: c.config.MaxOutputTokens,
		},
		SafetySettings: defaultSafetySettings(),
	}

	result, err := c.breaker.Execute(func() (*generateResponse, error) {
		return c.doRequest(ctx, &reqBody)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("%w: circuit breaker open", models.ErrTransientService)
		}
		return "", err
	}

	if result.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: %s", models.ErrServiceBlocked, result.PromptFeedback.BlockReason)
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: empty response", models.ErrServiceBlocked)
	}

	var text string
	for _, p := range result.Candidates[0].Content.Parts {
		text += p.Text
	}
	return text, nil
}

func (c *Client) doRequest(ctx context.Context, body *generateRequest) (*generateResponse, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		c.config.Endpoint, c.config.Model, c.config.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// 网络错误和超时都按瞬时处理
		return nil, fmt.Errorf("%w: %v", models.ErrTransientService, err)
	}
	defer resp.Body.Close()

	respData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", models.ErrTransientService, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d: %s", models.ErrTransientService, resp.StatusCode, respData)
	default:
		return nil, fmt.Errorf("%w: status %d: %s", models.ErrServiceBlocked, resp.StatusCode, respData)
	}

	var result generateResponse
	if err := json.Unmarshal(respData, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMalformedOutput, err)
	}
	if result.Error.Code != 0 {
		if result.Error.Code == 429 || result.Error.Code >= 500 {
			return nil, fmt.Errorf("%w: %s", models.ErrTransientService, result.Error.Message)
		}
		return nil, fmt.Errorf("%w: %s", models.ErrServiceBlocked, result.Error.Message)
	}

	return &result, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
