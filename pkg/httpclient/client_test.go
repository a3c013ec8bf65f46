package httpclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/accounts/pkg/errors"
)

func fastRetries(maxRetries int) Config {
	return Config{
		Timeout:         5 * time.Second,
		MaxRetries:      maxRetries,
		RetryWaitMin:    time.Millisecond,
		RetryWaitMax:    2 * time.Millisecond,
		MaxConnsPerHost: 10,
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.LessOrEqual(t, cfg.RetryWaitMin, cfg.RetryWaitMax)
}

func TestDo_RetryPolicy(t *testing.T) {
	tests := []struct {
		name         string
		statuses     []int
		maxRetries   int
		wantStatus   int
		wantAttempts int32
	}{
		{"success first try", []int{http.StatusOK}, 3, http.StatusOK, 1},
		{"recovers after 503s", []int{http.StatusServiceUnavailable, http.StatusServiceUnavailable, http.StatusOK}, 3, http.StatusOK, 3},
		{"gives up after max retries", []int{http.StatusBadGateway}, 2, http.StatusBadGateway, 3},
		{"501 is final", []int{http.StatusNotImplemented}, 3, http.StatusNotImplemented, 1},
		{"4xx is final", []int{http.StatusConflict}, 3, http.StatusConflict, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var attempts int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := int(atomic.AddInt32(&attempts, 1))
				status := tt.statuses[len(tt.statuses)-1]
				if n <= len(tt.statuses) {
					status = tt.statuses[n-1]
				}
				w.WriteHeader(status)
			}))
			defer server.Close()

			resp, err := New(fastRetries(tt.maxRetries)).Get(context.Background(), server.URL+"/health/ready")
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantAttempts, atomic.LoadInt32(&attempts))
		})
	}
}

func TestPost_ReplaysBodyOnRetry(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `{"email":"a@x.com"}`, string(body))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		if atomic.AddInt32(&attempts, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	resp, err := New(fastRetries(2)).Post(context.Background(), server.URL+"/api/v1/auth/register",
		"application/json", strings.NewReader(`{"email":"a@x.com"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}

func TestDo_ContextCanceledDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(Config{
		Timeout:         5 * time.Second,
		MaxRetries:      10,
		RetryWaitMin:    100 * time.Millisecond,
		RetryWaitMax:    500 * time.Millisecond,
		MaxConnsPerHost: 10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Get(ctx, server.URL)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGet_InvalidURL(t *testing.T) {
	_, err := New(fastRetries(0)).Get(context.Background(), "://invalid")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create GET request")
}

func TestDoJSON_SendsTokenAndDecodes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "a@x.com", in["email"])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"message":"User registered successfully!","data":{"user":{"id":"u1"}}}`))
	}))
	defer server.Close()

	var out struct {
		Message string `json:"message"`
		Data    struct {
			User struct {
				ID string `json:"id"`
			} `json:"user"`
		} `json:"data"`
	}
	err := New(fastRetries(0)).DoJSON(context.Background(), http.MethodPost, server.URL, "tok",
		map[string]string{"email": "a@x.com"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "User registered successfully!", out.Message)
	assert.Equal(t, "u1", out.Data.User.ID)
}

func TestDoJSON_NoBodyNoContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Content-Type"))
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	require.NoError(t, New(fastRetries(0)).DoJSON(context.Background(), http.MethodGet, server.URL, "", nil, nil))
}

func TestDoJSON_TranslatesErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"statusCode":409,"message":"User already exists with this email"}`))
	}))
	defer server.Close()

	err := New(fastRetries(0)).DoJSON(context.Background(), http.MethodPost, server.URL, "", map[string]string{}, nil)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusConflict, appErr.Status)
	assert.Equal(t, "User already exists with this email", appErr.Message)
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, isRetryableError(nil))
	assert.False(t, isRetryableError(context.Canceled))
	// context.DeadlineExceeded satisfies net.Error.
	assert.True(t, isRetryableError(context.DeadlineExceeded))
}

func TestAddJitter(t *testing.T) {
	const base = time.Second
	var lo, hi time.Duration
	for i := 0; i < 200; i++ {
		d := addJitter(base)
		assert.GreaterOrEqual(t, d, 750*time.Millisecond)
		assert.LessOrEqual(t, d, 1250*time.Millisecond)
		if i == 0 || d < lo {
			lo = d
		}
		if i == 0 || d > hi {
			hi = d
		}
	}
	assert.Greater(t, hi-lo, 50*time.Millisecond, "jitter should vary")

	assert.Equal(t, time.Duration(0), addJitter(0))
	assert.Equal(t, time.Duration(1), addJitter(1))
}
