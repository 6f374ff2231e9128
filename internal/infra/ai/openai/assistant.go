package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/bryanwahyu/kinetic-intake/internal/domain/assistant"
)

const (
	roleUser      = "user"
	roleAssistant = "assistant"

	defaultPollInterval = 700 * time.Millisecond
	defaultMaxPolls     = 120
)

// threadsAPI is the part of *openai.Client the assistant flow uses.
type threadsAPI interface {
	CreateThread(ctx context.Context, request openai.ThreadRequest) (openai.Thread, error)
	CreateMessage(ctx context.Context, threadID string, request openai.MessageRequest) (openai.Message, error)
	CreateRun(ctx context.Context, threadID string, request openai.RunRequest) (openai.Run, error)
	RetrieveRun(ctx context.Context, threadID string, runID string) (openai.Run, error)
	ListMessage(ctx context.Context, threadID string, limit *int, order *string, after *string, before *string, runID *string) (openai.MessagesList, error)
}

// Assistant runs one input against a hosted assistant: new thread, user
// message, run, bounded polling, then the newest assistant text.
type Assistant struct {
	api          threadsAPI
	assistantID  string
	pollInterval time.Duration
	maxPolls     int
	wait         func(ctx context.Context, d time.Duration) error
	log          *zap.Logger
}

var _ assistant.Client = (*Assistant)(nil)

func NewAssistant(api threadsAPI, assistantID string, pollInterval time.Duration, maxPolls int, log *zap.Logger) *Assistant {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	if maxPolls <= 0 {
		maxPolls = defaultMaxPolls
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Assistant{
		api:          api,
		assistantID:  assistantID,
		pollInterval: pollInterval,
		maxPolls:     maxPolls,
		wait:         sleepContext,
		log:          log,
	}
}

// NewAPI builds the SDK client, pointing it at baseURL when set.
func NewAPI(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

func (a *Assistant) Complete(ctx context.Context, input string) (string, error) {
	thread, err := a.api.CreateThread(ctx, openai.ThreadRequest{})
	if err != nil {
		return "", &assistant.UpstreamError{Op: "create thread", Err: mapError(err)}
	}
	if !strings.HasPrefix(thread.ID, "thread_") {
		return "", assistant.ErrInvalidThreadID
	}

	if _, err := a.api.CreateMessage(ctx, thread.ID, openai.MessageRequest{
		Role:    roleUser,
		Content: input,
	}); err != nil {
		return "", &assistant.UpstreamError{Op: "create message", Err: mapError(err)}
	}

	run, err := a.api.CreateRun(ctx, thread.ID, openai.RunRequest{AssistantID: a.assistantID})
	if err != nil {
		return "", &assistant.UpstreamError{Op: "create run", Err: mapError(err)}
	}
	if !strings.HasPrefix(run.ID, "run_") {
		return "", assistant.ErrInvalidRunID
	}

	if err := a.waitForCompletion(ctx, thread.ID, run); err != nil {
		return "", err
	}
	return a.latestAssistantText(ctx, thread.ID)
}

func (a *Assistant) waitForCompletion(ctx context.Context, threadID string, run openai.Run) error {
	status := run.Status
	polls := 0
	for status != openai.RunStatusCompleted && polls < a.maxPolls {
		if err := a.wait(ctx, a.pollInterval); err != nil {
			return err
		}
		polls++

		updated, err := a.api.RetrieveRun(ctx, threadID, run.ID)
		if err != nil {
			return &assistant.UpstreamError{Op: "retrieve run", Err: mapError(err)}
		}
		status = updated.Status

		switch status {
		case openai.RunStatusFailed, openai.RunStatusCancelled, openai.RunStatusExpired:
			e := &assistant.RunError{Status: string(status)}
			if updated.LastError != nil {
				e.Message = updated.LastError.Message
			}
			return e
		}
	}
	if status != openai.RunStatusCompleted {
		a.log.Warn("assistant run timed out",
			zap.String("thread_id", threadID),
			zap.String("run_id", run.ID),
			zap.String("status", string(status)),
			zap.Int("polls", polls),
		)
		return assistant.ErrRunTimeout
	}
	a.log.Debug("assistant run completed", zap.String("run_id", run.ID), zap.Int("polls", polls))
	return nil
}

func (a *Assistant) latestAssistantText(ctx context.Context, threadID string) (string, error) {
	order := "desc"
	list, err := a.api.ListMessage(ctx, threadID, nil, &order, nil, nil, nil)
	if err != nil {
		return "", &assistant.UpstreamError{Op: "list messages", Err: mapError(err)}
	}
	for _, m := range list.Messages {
		if m.Role != roleAssistant {
			continue
		}
		if len(m.Content) > 0 && m.Content[0].Type == "text" && m.Content[0].Text != nil {
			return m.Content[0].Text.Value, nil
		}
		return assistant.NoResponse, nil
	}
	return assistant.NoResponse, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// mapError turns provider rate limiting into assistant.ErrQuotaExceeded.
func mapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %s", assistant.ErrQuotaExceeded, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %v", assistant.ErrQuotaExceeded, reqErr.Err)
	}
	return err
}
