package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/123zhaozheng/gitlab-code-reviewer/internal/config"
	"github.com/123zhaozheng/gitlab-code-reviewer/internal/core"
)

type fakeChatClient struct {
	responses map[string]string
	errs      map[string]error
	calls     []string
}

func (f *fakeChatClient) Complete(_ context.Context, model, _, _ string) (string, error) {
	f.calls = append(f.calls, model)
	if err, ok := f.errs[model]; ok {
		return "", err
	}
	return f.responses[model], nil
}

func testDispatcher(client ChatClient) *Dispatcher {
	return NewDispatcher(client, config.AIConfig{
		DefaultModel:   "primary-model",
		FallbackModel:  "fallback-model",
		RequestTimeout: time.Second,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestDispatchUsesPrimary(t *testing.T) {
	fake := &fakeChatClient{responses: map[string]string{"primary-model": `{"score": 8}`}}
	d := testDispatcher(fake)

	content, model, err := d.Dispatch(context.Background(), "", "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, `{"score": 8}`, content)
	assert.Equal(t, "primary-model", model)
	assert.Equal(t, []string{"primary-model"}, fake.calls)
}

func TestDispatchOverridesModel(t *testing.T) {
	fake := &fakeChatClient{responses: map[string]string{"custom-model": "ok"}}
	d := testDispatcher(fake)

	_, model, err := d.Dispatch(context.Background(), "custom-model", "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, "custom-model", model)
}

func TestDispatchFallsBackOnce(t *testing.T) {
	fake := &fakeChatClient{
		errs:      map[string]error{"primary-model": errors.New("overloaded")},
		responses: map[string]string{"fallback-model": `{"score": 7}`},
	}
	d := testDispatcher(fake)

	content, model, err := d.Dispatch(context.Background(), "", "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, `{"score": 7}`, content)
	assert.Equal(t, "fallback-model", model)
	assert.Equal(t, []string{"primary-model", "fallback-model"}, fake.calls)
}

// slowPrimaryChat blocks on the primary model until the per-call deadline
// cancels it; the fallback answers immediately.
type slowPrimaryChat struct {
	calls []string
}

func (c *slowPrimaryChat) Complete(ctx context.Context, model, _, _ string) (string, error) {
	c.calls = append(c.calls, model)
	if model == "primary-model" {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return `{"score": 6}`, nil
}

func TestDispatchFallsBackWhenPrimaryTimesOut(t *testing.T) {
	fake := &slowPrimaryChat{}
	d := NewDispatcher(fake, config.AIConfig{
		DefaultModel:   "primary-model",
		FallbackModel:  "fallback-model",
		RequestTimeout: 20 * time.Millisecond,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	content, model, err := d.Dispatch(context.Background(), "", "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, `{"score": 6}`, content)
	assert.Equal(t, "fallback-model", model)
	assert.Equal(t, []string{"primary-model", "fallback-model"}, fake.calls)
}

func TestDispatchBothModelsFail(t *testing.T) {
	fake := &fakeChatClient{errs: map[string]error{
		"primary-model":  errors.New("overloaded"),
		"fallback-model": errors.New("also down"),
	}}
	d := testDispatcher(fake)

	_, _, err := d.Dispatch(context.Background(), "", "sys", "user")
	require.Error(t, err)
	assert.Equal(t, core.ErrModelUnavailable, core.KindOf(err))
}

func TestDispatchNoFallbackConfigured(t *testing.T) {
	fake := &fakeChatClient{errs: map[string]error{"primary-model": errors.New("down")}}
	d := NewDispatcher(fake, config.AIConfig{DefaultModel: "primary-model"}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, _, err := d.Dispatch(context.Background(), "", "sys", "user")
	require.Error(t, err)
	assert.Equal(t, core.ErrModelUnavailable, core.KindOf(err))
	assert.Len(t, fake.calls, 1)
}

func TestDispatchParentContextCancelled(t *testing.T) {
	fake := &fakeChatClient{errs: map[string]error{"primary-model": context.Canceled}}
	d := testDispatcher(fake)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := d.Dispatch(ctx, "", "sys", "user")
	require.Error(t, err)
	assert.Equal(t, core.ErrReviewTimedOut, core.KindOf(err))
}

func TestOpenAIClientComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices": [{"message": {"role": "assistant", "content": "{\"score\": 9}"}}]}`)
	}))
	defer srv.Close()

	client := NewChatClient(config.AIConfig{
		APIKey:          "test-key",
		BaseURL:         srv.URL,
		Temperature:     0.2,
		MaxOutputTokens: 100,
	})
	content, err := client.Complete(context.Background(), "gpt-4o", "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, `{"score": 9}`, content)
}
