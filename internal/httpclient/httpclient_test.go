package httpclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type embedReply struct {
	Vectors [][]float32 `json:"vectors"`
}

func TestPostJSONRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/embed", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var req map[string][]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"hi", "there"}, req["inputs"])
		w.Write([]byte(`{"vectors":[[1,0],[0,1]]}`))
	}))
	defer srv.Close()

	var out embedReply
	err := New(srv.URL, "tok").PostJSON(context.Background(), "/embed", map[string][]string{"inputs": {"hi", "there"}}, &out)
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, out.Vectors)
}

func TestPostJSONNoTokenNoAuthHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.Equal(t, "k1", r.Header.Get("X-Amber-Key"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(srv.URL, "", WithHeaders(map[string]string{"X-Amber-Key": "k1"}))
	require.NoError(t, c.PostJSON(context.Background(), "", []int{1, 2}, nil))
}

func TestPostJSONClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"bad inputs"}`))
	}))
	defer srv.Close()

	err := New(srv.URL, "", WithBackoff(time.Millisecond)).PostJSON(context.Background(), "/", 1, nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "bad inputs")
	assert.False(t, apiErr.Temporary())
	assert.Equal(t, int32(1), calls.Load())
}

func TestPostJSONErrorBodyTruncated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write(make([]byte, 2000))
	}))
	defer srv.Close()

	err := New(srv.URL, "").PostJSON(context.Background(), "/", 1, nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Len(t, apiErr.Body, maxErrorBody)
}

func TestPostJSONRetriesServerErrorsAndReplaysBody(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"inputs":["x"]}`, string(body))
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"vectors":[[1]]}`))
	}))
	defer srv.Close()

	var out embedReply
	c := New(srv.URL, "", WithBackoff(time.Millisecond))
	require.NoError(t, c.PostJSON(context.Background(), "", map[string][]string{"inputs": {"x"}}, &out))
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, [][]float32{{1}}, out.Vectors)
}

func TestPostJSONHonoursRetryAfter(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	start := time.Now()
	c := New(srv.URL, "", WithBackoff(time.Millisecond))
	require.NoError(t, c.PostJSON(context.Background(), "", 1, nil))
	assert.GreaterOrEqual(t, time.Since(start), 900*time.Millisecond)
	assert.Equal(t, int32(2), calls.Load())
}

func TestPostJSONGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, "", WithBackoff(time.Millisecond), WithRetries(2))
	err := c.PostJSON(context.Background(), "", 1, nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestPostJSONCancelledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := New(srv.URL, "", WithBackoff(time.Hour)).PostJSON(ctx, "", 1, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPostJSONUnmarshalableBody(t *testing.T) {
	err := New("http://unused", "").PostJSON(context.Background(), "", make(chan int), nil)
	assert.ErrorContains(t, err, "marshal")
}

func TestPostJSONBadResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	var out embedReply
	err := New(srv.URL, "").PostJSON(context.Background(), "", 1, &out)
	assert.ErrorContains(t, err, "decode")
}

func TestDelay(t *testing.T) {
	c := New("", "", WithBackoff(10*time.Millisecond))
	assert.Equal(t, 10*time.Millisecond, c.delay(0, &APIError{StatusCode: 503}))
	assert.Equal(t, 40*time.Millisecond, c.delay(2, &APIError{StatusCode: 503}))
	assert.Equal(t, 3*time.Second, c.delay(0, &APIError{StatusCode: 429, RetryAfter: 3 * time.Second}))
	assert.Equal(t, 20*time.Millisecond, c.delay(1, &APIError{StatusCode: 503, RetryAfter: 3 * time.Second}))
}
