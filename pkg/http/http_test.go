package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type addrRequest struct {
	Address string `param:"address" validate:"required,eth_addr"`
	Limit   int    `query:"limit" default:"50" validate:"gte=1,lte=100"`
}

func TestReadAndValidateRequest(t *testing.T) {
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/x?limit=0", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("address")
	c.SetParamValues("0x1234")

	out := &addrRequest{}
	verr := ReadAndValidateRequest(c, out)
	errs, ok := verr.([]ValidationError)
	require.True(t, ok)
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_ETH_ADDR", errs[0].Code)
	assert.Equal(t, 50, out.Limit)

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/x?limit=7", nil), httptest.NewRecorder())
	c.SetParamNames("address")
	c.SetParamValues("0x8eb67a509616cd6a7c1b3c8c21d48ff57df3d458")
	out = &addrRequest{}
	assert.Nil(t, ReadAndValidateRequest(c, out))
	assert.Equal(t, 7, out.Limit)
}

func TestAppErrorResponse(t *testing.T) {
	e := echo.New()
	w := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), w)

	err := fmt.Errorf("wrapped: %w", BadGatewayError("indexer down"))
	require.NoError(t, AppErrorResponse(c, err))
	assert.Equal(t, http.StatusBadGateway, w.Code)

	var body APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, http.StatusBadGateway, body.Status)
	assert.Contains(t, w.Body.String(), "ERR_UPSTREAM")

	w = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), w)
	require.NoError(t, AppErrorResponse(c, errors.New("boom")))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

type pingHandler struct{}

func (pingHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ping", func(c echo.Context) error { return SuccessResponse(c, "pong") })
}

func TestServerMountsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	srv := NewServer(pingHandler{}, WithMetrics(nil, promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	w := httptest.NewRecorder()
	srv.Echo().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pong")

	w = httptest.NewRecorder()
	srv.Echo().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestClientStatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "vaultrisk/1.0", r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(strings.Repeat("x", 10_000)))
	}))
	defer ts.Close()

	var out map[string]interface{}
	err := NewClient().SendAndParse(context.Background(), &RequestOptions{Method: MethodGet, URL: ts.URL}, &out)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusServiceUnavailable, se.Code)
	assert.Len(t, se.Body, maxErrorBody)
}

func TestAppErrorResponseHidesInternals(t *testing.T) {
	e := echo.New()
	w := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), w)

	require.NoError(t, AppErrorResponse(c, errors.New("dial tcp 10.0.0.7:9000: refused")))
	assert.NotContains(t, w.Body.String(), "10.0.0.7")
	assert.Contains(t, w.Body.String(), "ERR_INTERNAL")
}

func TestReadinessResponse(t *testing.T) {
	e := echo.New()

	w := httptest.NewRecorder()
	require.NoError(t, ReadinessResponse(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), w),
		[]CheckResult{{Name: "redis", OK: true}}))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	require.NoError(t, ReadinessResponse(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), w),
		[]CheckResult{{Name: "redis", OK: true}, {Name: "clickhouse", Error: "timeout"}}))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"clickhouse"`)
}

func TestRateLimitedError(t *testing.T) {
	err := RateLimitedError(3)
	assert.Equal(t, http.StatusTooManyRequests, err.Status)
	assert.Equal(t, 3, err.Params["retryAfter"])
}

type marketRequest struct {
	MarketID string `param:"marketId" validate:"required,bytes32"`
}

func TestBytes32ValidationUsesParamName(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("marketId")
	c.SetParamValues("0x1234")

	errs, ok := ReadAndValidateRequest(c, &marketRequest{}).([]ValidationError)
	require.True(t, ok)
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_BYTES32", errs[0].Code)
	assert.Equal(t, "marketId", errs[0].Field)

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("marketId")
	c.SetParamValues("0x" + strings.Repeat("aB", 32))
	assert.Nil(t, ReadAndValidateRequest(c, &marketRequest{}))
}

func TestReadAndValidateRequestMalformedQuery(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/x?limit=abc", nil), httptest.NewRecorder())
	c.SetParamNames("address")
	c.SetParamValues("0x8eb67a509616cd6a7c1b3c8c21d48ff57df3d458")

	errs, ok := ReadAndValidateRequest(c, &addrRequest{}).([]ValidationError)
	require.True(t, ok)
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_MALFORMED", errs[0].Code)
}

func TestNewValidatorUsesWireNames(t *testing.T) {
	type node struct {
		UniqueKey string `json:"uniqueKey" validate:"bytes32"`
		Limit     int    `query:"limit" validate:"lte=10"`
	}
	err := NewValidator().Struct(node{UniqueKey: "0x12", Limit: 11})
	require.Error(t, err)

	errs := fieldErrors(err)
	require.Len(t, errs, 2)
	assert.Equal(t, "uniqueKey", errs[0].Field)
	assert.Equal(t, "uniqueKey must be a 0x-prefixed 32-byte hex id", errs[0].Message)
	assert.Equal(t, "limit", errs[1].Field)
	assert.Equal(t, "limit must be less than or equal to 10", errs[1].Message)
	assert.Equal(t, "10", errs[1].Params["max"])
}

func TestClientRetriesTransientFailures(t *testing.T) {
	var calls int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"q":1}`, string(body))
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer ts.Close()

	var out struct {
		OK bool `json:"ok"`
	}
	c := NewClient(WithRetry(2, time.Millisecond))
	err := c.SendAndParse(context.Background(), &RequestOptions{
		Method:    MethodPost,
		URL:       ts.URL,
		Body:      map[string]int{"q": 1},
		Retryable: true,
	}, &out)
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, 3, calls)
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer ts.Close()

	err := NewClient(WithRetry(3, time.Millisecond)).SendAndParse(context.Background(),
		&RequestOptions{Method: MethodGet, URL: ts.URL, Retryable: true}, nil)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 1, calls)
}
