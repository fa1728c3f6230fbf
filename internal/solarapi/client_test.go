package solarapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func testClient(timeout time.Duration) *Client {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	c := NewClient(log, timeout)
	c.SetBackoff([]time.Duration{time.Millisecond})
	return c
}

func TestRequestBearerSuccess(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		require.Equal(t, "Bearer secret-token-0123456789", r.Header.Get("Authorization"))
		require.Equal(t, "SN100", r.URL.Query().Get("sn"))
		require.Equal(t, "/device/realtime", r.URL.Path)
		w.Write([]byte(`{"data": {"pac": "100"}}`))
	}))
	defer ts.Close()

	parsed, mode, err := testClient(0).Request(context.Background(), ts.URL+"///", "secret-token-0123456789",
		http.MethodGet, "/device/realtime", map[string]string{"sn": "SN100"}, nil)

	require.NoError(t, err)
	require.Equal(t, AuthModeBearer, mode)
	require.Contains(t, parsed, "data")
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRequestFallsBackToTokenHeader(t *testing.T) {
	var bearerCalls, tokenCalls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			atomic.AddInt32(&bearerCalls, 1)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		require.Equal(t, "secret-token-0123456789", r.Header.Get("Token"))
		atomic.AddInt32(&tokenCalls, 1)
		w.Write([]byte(`{"data": {}}`))
	}))
	defer ts.Close()

	_, mode, err := testClient(0).Request(context.Background(), ts.URL, "secret-token-0123456789",
		http.MethodGet, "/device/list", nil, nil)

	require.NoError(t, err)
	require.Equal(t, AuthModeTokenHeader, mode)
	// The 401 abandons the bearer budget immediately, no retries
	require.Equal(t, int32(1), atomic.LoadInt32(&bearerCalls))
	require.Equal(t, int32(1), atomic.LoadInt32(&tokenCalls))
}

func TestRequestAuthFailureUnderBothModes(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	_, _, err := testClient(0).Request(context.Background(), ts.URL, "secret-token-0123456789",
		http.MethodGet, "/device/list", nil, nil)

	require.Error(t, err)
	apiErr := AsError(err)
	require.Equal(t, CategoryAuth, apiErr.Category)
	require.Equal(t, http.StatusUnauthorized, apiErr.HTTPStatus)
	require.Equal(t, "auth_error:401", apiErr.Code())
	// One attempt per mode, both rejected
	require.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestRequestRetriesServerErrors(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"data": {}}`))
	}))
	defer ts.Close()

	_, mode, err := testClient(0).Request(context.Background(), ts.URL, "secret-token-0123456789",
		http.MethodGet, "/device/list", nil, nil)

	require.NoError(t, err)
	require.Equal(t, AuthModeBearer, mode)
	require.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRequestRateLimitExhaustsRetries(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	_, _, err := testClient(0).Request(context.Background(), ts.URL, "secret-token-0123456789",
		http.MethodGet, "/device/list", nil, nil)

	require.Error(t, err)
	apiErr := AsError(err)
	require.Equal(t, CategoryUpstream, apiErr.Category)
	require.Equal(t, http.StatusTooManyRequests, apiErr.HTTPStatus)
	// Rate limiting is not an auth rejection, so no mode fallback happens
	require.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRequestTerminalUpstreamError(t *testing.T) {
	var calls int32
	body := strings.Repeat("x", 500)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(body))
	}))
	defer ts.Close()

	_, _, err := testClient(0).Request(context.Background(), ts.URL, "secret-token-0123456789",
		http.MethodGet, "/device/list", nil, nil)

	require.Error(t, err)
	apiErr := AsError(err)
	require.Equal(t, CategoryUpstream, apiErr.Category)
	require.Equal(t, http.StatusNotFound, apiErr.HTTPStatus)
	// The diagnostic excerpt is capped at 200 characters of body
	require.LessOrEqual(t, len(apiErr.Message), 300)
	// Terminal status, no retries
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRequestParseError(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte("<html>definitely not json</html>"))
	}))
	defer ts.Close()

	_, _, err := testClient(0).Request(context.Background(), ts.URL, "secret-token-0123456789",
		http.MethodGet, "/device/list", nil, nil)

	require.Error(t, err)
	require.Equal(t, CategoryParse, AsError(err).Category)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRequestTimeout(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	_, _, err := testClient(20 * time.Millisecond).Request(context.Background(), ts.URL,
		"secret-token-0123456789", http.MethodGet, "/device/list", nil, nil)

	require.Error(t, err)
	require.Equal(t, CategoryTimeout, AsError(err).Category)
	// Timeouts are retried before giving up
	require.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestMaskToken(t *testing.T) {
	require.Equal(t, "****", MaskToken(""))
	require.Equal(t, "****", MaskToken("short"))
	require.Equal(t, "****", MaskToken("12345678"))
	require.Equal(t, "abcd*********wxyz", MaskToken("abcdefghijklmwxyz"))
	require.NotContains(t, MaskToken("abcdefghijklmwxyz"), "efgh")
}
