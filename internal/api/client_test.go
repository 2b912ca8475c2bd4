package api

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/dl-alexandre/gdm/internal/logging"
	"github.com/dl-alexandre/gdm/internal/types"
	"github.com/dl-alexandre/gdm/internal/utils"
	"google.golang.org/api/googleapi"
)

func newTestClient(maxRetries int) *Client {
	return NewClient(nil, maxRetries, 1, logging.NewNoOpLogger())
}

func TestNewRequestContext(t *testing.T) {
	reqCtx := NewRequestContext("source@example.com", "", types.RequestTypeGetByID)
	if reqCtx.TraceID == "" {
		t.Error("TraceID not generated")
	}
	if reqCtx.InvolvedFileIDs == nil || reqCtx.InvolvedParentIDs == nil {
		t.Error("ID slices should be initialized")
	}

	ctx := logging.ContextWithTraceID(context.Background(), "doc-trace")
	if got := NewRequestContextFrom(ctx, "p", types.RequestTypeMutation).TraceID; got != "doc-trace" {
		t.Errorf("NewRequestContextFrom TraceID = %q, want doc-trace", got)
	}
	if got := NewRequestContextFrom(context.Background(), "p", types.RequestTypeMutation).TraceID; got == "" {
		t.Error("NewRequestContextFrom without trace should generate one")
	}
}

func TestExecuteWithRetry_RetriesTransientErrors(t *testing.T) {
	client := newTestClient(3)
	reqCtx := NewRequestContext("p", "", types.RequestTypeGetByID)

	calls := 0
	got, err := ExecuteWithRetry(context.Background(), client, reqCtx, func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", &googleapi.Error{Code: 503}
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" || calls != 3 {
		t.Errorf("got %q after %d calls, want ok after 3", got, calls)
	}
}

func TestExecuteWithRetry_StopsOnPermanentError(t *testing.T) {
	client := newTestClient(3)
	reqCtx := NewRequestContext("p", "", types.RequestTypeGetByID)

	calls := 0
	_, err := ExecuteWithRetry(context.Background(), client, reqCtx, func(ctx context.Context) (int, error) {
		calls++
		return 0, &googleapi.Error{Code: 404, Message: "File not found"}
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if !utils.HasCode(err, utils.ErrCodeFileNotFound) {
		t.Errorf("err = %v, want FILE_NOT_FOUND", err)
	}
}

func TestExecuteWithRetry_ExhaustsRetries(t *testing.T) {
	client := newTestClient(2)
	reqCtx := NewRequestContext("p", "", types.RequestTypeGetByID)

	calls := 0
	_, err := ExecuteWithRetry(context.Background(), client, reqCtx, func(ctx context.Context) (int, error) {
		calls++
		return 0, &googleapi.Error{Code: 429}
	})
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if !utils.HasCode(err, utils.ErrCodeRateLimited) {
		t.Errorf("err = %v, want RATE_LIMITED", err)
	}
}

func TestExecuteWithRetry_PerAttemptTimeout(t *testing.T) {
	client := newTestClient(0).WithRequestTimeout(10 * time.Millisecond)
	reqCtx := NewRequestContext("p", "", types.RequestTypeGetByID)

	_, err := ExecuteWithRetry(context.Background(), client, reqCtx, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	if !utils.HasCode(err, utils.ErrCodeTimeout) {
		t.Errorf("err = %v, want TIMEOUT", err)
	}
}

func TestExecuteWithRetry_CallerCancelled(t *testing.T) {
	client := newTestClient(5)
	reqCtx := NewRequestContext("p", "", types.RequestTypeGetByID)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := ExecuteWithRetry(ctx, client, reqCtx, func(ctx context.Context) (int, error) {
		calls++
		cancel()
		return 0, &googleapi.Error{Code: 503}
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1 after cancellation", calls)
	}
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"429", &googleapi.Error{Code: 429}, true},
		{"500", &googleapi.Error{Code: 500}, true},
		{"504", &googleapi.Error{Code: 504}, true},
		{"403", &googleapi.Error{Code: 403}, false},
		{"404", &googleapi.Error{Code: 404}, false},
		{"deadline", context.DeadlineExceeded, true},
		{"other", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryable(tt.err); got != tt.want {
				t.Errorf("isRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCalculateBackoff(t *testing.T) {
	base := 100 * time.Millisecond

	for attempt := 0; attempt < 4; attempt++ {
		want := base * time.Duration(1<<attempt)
		got := calculateBackoff(base, attempt, errors.New("x"))
		if got < want*3/4 || got > want*5/4 {
			t.Errorf("attempt %d: delay %v outside [%v, %v]", attempt, got, want*3/4, want*5/4)
		}
	}

	capped := calculateBackoff(time.Second, 10, errors.New("x"))
	max := time.Duration(utils.MaxRetryDelayMs) * time.Millisecond
	if capped > max*5/4 {
		t.Errorf("delay %v exceeds cap", capped)
	}

	retryAfter := &googleapi.Error{Code: 429, Header: http.Header{"Retry-After": []string{"2"}}}
	if got := calculateBackoff(base, 0, retryAfter); got != 2*time.Second {
		t.Errorf("Retry-After delay = %v, want 2s", got)
	}

	if got := calculateBackoff(0, 0, errors.New("x")); got != 0 {
		t.Errorf("zero base delay = %v, want 0", got)
	}
}
