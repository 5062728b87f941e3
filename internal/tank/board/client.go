package board

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ashtavinayaka/tankflow/internal/tank/apperror"
	"github.com/ashtavinayaka/tankflow/internal/tank/entity"
)

// Client is the board's view of the tankflow API.
type Client interface {
	Processes(ctx context.Context) ([]entity.Process, error)
	Check(ctx context.Context, tankID, serialNo string) (*Observed, error)
	SetStatus(ctx context.Context, processID string, status entity.Status) (*StatusResult, error)
	CompletionStatus(ctx context.Context, tankID string) (*Completion, error)
}

// Observed is the verification read taken before a drag is committed.
type Observed struct {
	ProcessID string        `json:"processId"`
	Status    entity.Status `json:"status"`
	Progress  int           `json:"progress"`
}

// StatusResult is the server's answer to a status change.
type StatusResult struct {
	Success      bool            `json:"success"`
	Process      *entity.Process `json:"process"`
	TankComplete bool            `json:"tankComplete"`
	TankStatus   entity.Status   `json:"tankStatus"`
}

// Completion mirrors GET /api/tanks/:id/completion-status.
type Completion struct {
	TankID     string `json:"tankId"`
	IsComplete bool   `json:"isComplete"`
	Total      int    `json:"total"`
	Completed  int    `json:"completed"`
}

// =============================================================================
// HTTPClient: tankflow API客户端
// 封装通用JSON请求，错误响应还原为 apperror.AppError
// =============================================================================

// HTTPClient talks to a tankflow server over its JSON API.
type HTTPClient struct {
	baseURL    string       // 服务地址，如 http://localhost:8080
	httpClient *http.Client // HTTP客户端
}

// NewHTTPClient 创建API客户端
func NewHTTPClient(baseURL string, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Processes GET /api/processes
func (c *HTTPClient) Processes(ctx context.Context) ([]entity.Process, error) {
	var resp struct {
		Processes []entity.Process `json:"processes"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/api/processes", nil, &resp); err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}
	return resp.Processes, nil
}

// Check GET /api/processes/check/:tankId/:serialNo
func (c *HTTPClient) Check(ctx context.Context, tankID, serialNo string) (*Observed, error) {
	path := fmt.Sprintf("/api/processes/check/%s/%s", url.PathEscape(tankID), url.PathEscape(serialNo))

	var resp Observed
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("check %s/%s: %w", tankID, serialNo, err)
	}
	return &resp, nil
}

// SetStatus PATCH /api/processes/:id/status
func (c *HTTPClient) SetStatus(ctx context.Context, processID string, status entity.Status) (*StatusResult, error) {
	path := fmt.Sprintf("/api/processes/%s/status", url.PathEscape(processID))

	var resp StatusResult
	if err := c.doRequest(ctx, http.MethodPatch, path, map[string]string{"status": string(status)}, &resp); err != nil {
		return nil, fmt.Errorf("set status of %s: %w", processID, err)
	}
	return &resp, nil
}

// CompletionStatus GET /api/tanks/:id/completion-status
func (c *HTTPClient) CompletionStatus(ctx context.Context, tankID string) (*Completion, error) {
	path := fmt.Sprintf("/api/tanks/%s/completion-status", url.PathEscape(tankID))

	var resp Completion
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("completion status of %s: %w", tankID, err)
	}
	return &resp, nil
}

// doRequest 执行API请求
// body 非nil时按JSON发送；非2xx响应按 {"error","code"} 解析为 AppError
func (c *HTTPClient) doRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, respBody)
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func decodeError(status int, body []byte) error {
	var errResp struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Code == "" {
		return &apperror.AppError{
			Code:       apperror.CodePersistence,
			Message:    fmt.Sprintf("unexpected response %d", status),
			HTTPStatus: status,
		}
	}
	return &apperror.AppError{Code: errResp.Code, Message: errResp.Error, HTTPStatus: status}
}
