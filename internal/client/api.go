package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mindbloom/mindbloom/internal/dto"
)

// API 服务端接口
type API interface {
	Login(ctx context.Context, username, password string) (*dto.LoginResponse, error)
	SetToken(token string)
	PullAll(ctx context.Context) (*dto.DataDTO, error)
	PushAll(ctx context.Context, data dto.DataDTO) error
	PushMood(ctx context.Context, m dto.MoodDTO) error
	PushTask(ctx context.Context, t dto.TaskDTO) error
	// 建议与寄语为追加写入，返回服务端分配的 id
	PushSuggestion(ctx context.Context, s dto.SuggestionDTO) (int64, error)
	PushQuote(ctx context.Context, q dto.QuoteDTO) (int64, error)
	GenerateSuggestion(ctx context.Context) (*dto.SuggestionResponse, error)
	GenerateQuote(ctx context.Context) (*dto.QuoteResponse, error)
}

// APIError 非 2xx 响应
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("服务端返回 %d: %s", e.StatusCode, e.Message)
}

// HTTPClient MindBloom 服务端的 HTTP 客户端
type HTTPClient struct {
	baseURL string
	client  *http.Client

	mu    sync.RWMutex
	token string
}

func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 90 * time.Second},
	}
}

func (c *HTTPClient) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("序列化请求失败: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.mu.RLock()
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	c.mu.RUnlock()

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("发送请求失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("读取响应失败: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e dto.ErrorResponse
		msg := strings.TrimSpace(string(respBody))
		if json.Unmarshal(respBody, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	return nil
}

func (c *HTTPClient) Login(ctx context.Context, username, password string) (*dto.LoginResponse, error) {
	var out dto.LoginResponse
	if err := c.do(ctx, http.MethodPost, "/api/login", dto.CredentialsRequest{Username: username, Password: password}, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, errors.New("登录失败")
	}
	return &out, nil
}

func (c *HTTPClient) PullAll(ctx context.Context) (*dto.DataDTO, error) {
	var out dto.DataDTO
	if err := c.do(ctx, http.MethodGet, "/api/data", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) PushAll(ctx context.Context, data dto.DataDTO) error {
	return c.do(ctx, http.MethodPost, "/api/data", data, nil)
}

func (c *HTTPClient) PushMood(ctx context.Context, m dto.MoodDTO) error {
	return c.do(ctx, http.MethodPost, "/api/mood", m, nil)
}

func (c *HTTPClient) PushTask(ctx context.Context, t dto.TaskDTO) error {
	return c.do(ctx, http.MethodPost, "/api/task", t, nil)
}

func (c *HTTPClient) PushSuggestion(ctx context.Context, s dto.SuggestionDTO) (int64, error) {
	var out dto.CreatedResponse
	if err := c.do(ctx, http.MethodPost, "/api/ai-suggestion", s, &out); err != nil {
		return 0, err
	}
	return out.ID, nil
}

func (c *HTTPClient) PushQuote(ctx context.Context, q dto.QuoteDTO) (int64, error) {
	var out dto.CreatedResponse
	if err := c.do(ctx, http.MethodPost, "/api/quote", q, &out); err != nil {
		return 0, err
	}
	return out.ID, nil
}

func (c *HTTPClient) GenerateSuggestion(ctx context.Context) (*dto.SuggestionResponse, error) {
	var out dto.SuggestionResponse
	if err := c.do(ctx, http.MethodPost, "/api/generate-ai-suggestion", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) GenerateQuote(ctx context.Context) (*dto.QuoteResponse, error) {
	var out dto.QuoteResponse
	if err := c.do(ctx, http.MethodPost, "/api/generate-ai-quote", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
