package reconstruct

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"product-studio-server/modules/common/apierr"
)

// Service - 3D 재구성 provider (start + poll)
type Service struct {
	baseURL      string
	apiKey       string
	pollInterval time.Duration
	maxAttempts  int
	httpClient   *http.Client
}

// NewService - Service 생성
func NewService(baseURL, apiKey string, pollInterval time.Duration, maxAttempts int) *Service {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	if maxAttempts < 1 {
		maxAttempts = 60
	}
	return &Service{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		pollInterval: pollInterval,
		maxAttempts:  maxAttempts,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
	}
}

func (s *Service) Configured() bool {
	return s != nil && s.baseURL != ""
}

func (s *Service) do(ctx context.Context, op, method, url string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return apierr.Wrap(apierr.KindUnknown, op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return apierr.Validation(op, "failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return apierr.FromTransport(op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return apierr.FromTransport(op, err)
	}
	if err := apierr.FromResponse(op, resp.StatusCode, respBody); err != nil {
		return err
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return apierr.Wrap(apierr.KindUnknown, op, fmt.Errorf("failed to unmarshal response: %w", err))
	}
	return nil
}

// CreateTask - 재구성 작업 시작
func (s *Service) CreateTask(ctx context.Context, imageURL string, mode Mode) (string, error) {
	if !s.Configured() {
		return "", apierr.Validation("reconstruct.create", "3D reconstruction provider is not configured")
	}

	var result createTaskResponse
	if err := s.do(ctx, "reconstruct.create", http.MethodPost, s.baseURL+"/tasks", createTaskRequest{ImageURL: imageURL, Mode: mode}, &result); err != nil {
		return "", err
	}
	if result.TaskID == "" {
		return "", apierr.New(apierr.KindUnknown, "reconstruct.create", "response has no task_id")
	}

	log.Info().Str("task_id", result.TaskID).Str("mode", string(mode)).Msg("✅ [Reconstruct] Task created")
	return result.TaskID, nil
}

// GetTaskStatus - 작업 상태 조회
func (s *Service) GetTaskStatus(ctx context.Context, taskID string) (*TaskStatus, error) {
	var status TaskStatus
	if err := s.do(ctx, "reconstruct.status", http.MethodGet, s.baseURL+"/tasks/"+taskID, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// WaitForCompletion - 작업 완료 대기 (폴링)
func (s *Service) WaitForCompletion(ctx context.Context, taskID string) (*TaskStatus, error) {
	log.Debug().Str("task_id", taskID).Msg("⏳ [Reconstruct] Waiting for task to complete")

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		status, err := s.GetTaskStatus(ctx, taskID)
		switch {
		case err != nil && !apierr.IsRetryable(err):
			return nil, err
		case err != nil:
			log.Warn().Err(err).Int("attempt", attempt).Msg("⚠️  [Reconstruct] Failed to get status")
		default:
			switch status.Status {
			case "succeeded", "succeed", "completed":
				if status.ArtifactURL() == "" {
					return status, apierr.New(apierr.KindUnknown, "reconstruct.wait", "task succeeded without artifact")
				}
				log.Info().Str("task_id", taskID).Int("attempt", attempt).Msg("✅ [Reconstruct] Task completed")
				return status, nil
			case "failed":
				return status, apierr.New(apierr.KindValidation, "reconstruct.wait", "task failed: "+status.Error)
			}
		}

		if attempt == s.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, apierr.FromTransport("reconstruct.wait", ctx.Err())
		case <-time.After(s.pollInterval):
		}
	}

	return nil, apierr.New(apierr.KindUnknown, "reconstruct.wait",
		fmt.Sprintf("timeout waiting for task completion after %d attempts", s.maxAttempts))
}

// Generate - 작업 생성 후 완료까지 대기, 결과 URL 반환
func (s *Service) Generate(ctx context.Context, imageURL string, mode Mode) (string, error) {
	taskID, err := s.CreateTask(ctx, imageURL, mode)
	if err != nil {
		return "", err
	}
	status, err := s.WaitForCompletion(ctx, taskID)
	if err != nil {
		return "", err
	}
	return status.ArtifactURL(), nil
}
