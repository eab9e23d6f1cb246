package middleware

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweetshop/sweetshop-backend/pkg/enums"
	pkgerrors "github.com/sweetshop/sweetshop-backend/pkg/errors"
)

var testCaller = uuid.MustParse("5d7a3c1e-4b52-4f3c-9a41-0c6f1f6f2a10")

func countingHandler(calls *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = fmt.Fprintf(w, `{"data":{"call":%d,"echo":%s}}`, *calls, body)
	})
}

func idempotentRequest(key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/sweets/1/purchase", strings.NewReader(body))
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}
	return req.WithContext(WithPrincipal(req.Context(), Principal{UserID: testCaller, Role: enums.UserRoleUser}))
}

func TestIdempotencyReplaysFirstResponse(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, 0, nil)(countingHandler(&calls))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, idempotentRequest("abc", `{"quantity":2}`))
	require.Equal(t, http.StatusCreated, first.Code)

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, idempotentRequest("abc", `{"quantity":2}`))

	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, "application/json", second.Header().Get("Content-Type"))
}

func TestIdempotencyRejectsDifferentBody(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, 0, nil)(countingHandler(&calls))

	handler.ServeHTTP(httptest.NewRecorder(), idempotentRequest("abc", `{"quantity":2}`))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, idempotentRequest("abc", `{"quantity":3}`))
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Contains(t, resp.Body.String(), string(pkgerrors.CodeIdempotency))
	assert.Equal(t, 1, calls)
}

func TestIdempotencyWithoutKeyPassesThrough(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, 0, nil)(countingHandler(&calls))

	handler.ServeHTTP(httptest.NewRecorder(), idempotentRequest("", `{}`))
	handler.ServeHTTP(httptest.NewRecorder(), idempotentRequest("", `{}`))

	assert.Equal(t, 2, calls)
	assert.Empty(t, store.data)
}

func TestIdempotencySkipsServerErrors(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, 0, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), idempotentRequest("retry", `{}`))
	handler.ServeHTTP(httptest.NewRecorder(), idempotentRequest("retry", `{}`))

	assert.Equal(t, 2, calls)
}

func TestIdempotencyReleasesKeyAfterPanic(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Recoverer(nil)(Idempotency(store, 0, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			panic("ledger exploded")
		}
		w.WriteHeader(http.StatusOK)
	})))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, idempotentRequest("boom", `{"quantity":1}`))
	require.Equal(t, http.StatusInternalServerError, first.Code)
	assert.Empty(t, store.data)

	retry := httptest.NewRecorder()
	handler.ServeHTTP(retry, idempotentRequest("boom", `{"quantity":1}`))
	assert.Equal(t, http.StatusOK, retry.Code)
	assert.Equal(t, 2, calls)
}

func TestIdempotencyRecordsOutcomeAfterClientDisconnect(t *testing.T) {
	store := newFakeStore()
	calls := 0
	var disconnect context.CancelFunc
	handler := Idempotency(store, 0, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		disconnect()
		w.WriteHeader(http.StatusCreated)
	}))

	req := idempotentRequest("gone", `{}`)
	ctx, cancel := context.WithCancel(req.Context())
	disconnect = cancel
	handler.ServeHTTP(httptest.NewRecorder(), req.WithContext(ctx))
	require.Error(t, ctx.Err())

	replay := httptest.NewRecorder()
	handler.ServeHTTP(replay, idempotentRequest("gone", `{}`))
	assert.Equal(t, http.StatusCreated, replay.Code)
	assert.Equal(t, "true", replay.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, 1, calls)
}

func TestIdempotencyRejectsConcurrentDuplicate(t *testing.T) {
	store := newFakeStore()
	calls := 0

	var handler http.Handler
	handler = Idempotency(store, 0, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		// a duplicate arriving while the first purchase is still running
		dup := httptest.NewRecorder()
		if calls == 1 {
			handler.ServeHTTP(dup, idempotentRequest("inflight", `{"quantity":1}`))
			assert.Equal(t, http.StatusConflict, dup.Code)
			assert.Contains(t, dup.Body.String(), "still in progress")
		}
		w.WriteHeader(http.StatusOK)
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, idempotentRequest("inflight", `{"quantity":1}`))
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 1, calls)
}

func TestIdempotencyKeysAreScopedPerCaller(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, 0, nil)(countingHandler(&calls))

	handler.ServeHTTP(httptest.NewRecorder(), idempotentRequest("shared", `{}`))

	other := httptest.NewRequest(http.MethodPost, "/api/sweets/1/purchase", strings.NewReader(`{}`))
	other.Header.Set(IdempotencyHeader, "shared")
	other = other.WithContext(WithPrincipal(other.Context(), Principal{UserID: uuid.New(), Role: enums.UserRoleUser}))
	handler.ServeHTTP(httptest.NewRecorder(), other)

	assert.Equal(t, 2, calls)
}

func TestIdempotencyRejectsLongKey(t *testing.T) {
	calls := 0
	handler := Idempotency(newFakeStore(), 0, nil)(countingHandler(&calls))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, idempotentRequest(strings.Repeat("k", 256), `{}`))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Zero(t, calls)
}
