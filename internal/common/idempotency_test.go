package common

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newIdemRig(t *testing.T) Idem {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return Idem{R: rdb, TTL: time.Hour}
}

func sendKeyed(h http.Handler, key string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, "/carts", nil)
	if key != "" {
		r.Header.Set("Idempotency-Key", key)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestIdemDuplicateKeyRejected(t *testing.T) {
	idem := newIdemRig(t)
	h := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	require.Equal(t, http.StatusCreated, sendKeyed(h, "key-1").Code)
	require.Equal(t, http.StatusConflict, sendKeyed(h, "key-1").Code)
	require.Equal(t, http.StatusCreated, sendKeyed(h, "key-2").Code)
}

func TestIdemNoKeyPassesThrough(t *testing.T) {
	idem := newIdemRig(t)
	h := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	require.Equal(t, http.StatusCreated, sendKeyed(h, "").Code)
	require.Equal(t, http.StatusCreated, sendKeyed(h, "").Code)
}

func TestIdemServerErrorReleasesKey(t *testing.T) {
	idem := newIdemRig(t)
	fail := true
	h := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))

	require.Equal(t, http.StatusInternalServerError, sendKeyed(h, "key-1").Code)

	// the failed attempt must not lock out the retry
	fail = false
	require.Equal(t, http.StatusCreated, sendKeyed(h, "key-1").Code)
	require.Equal(t, http.StatusConflict, sendKeyed(h, "key-1").Code)
}

func TestIdemClientErrorKeepsKey(t *testing.T) {
	idem := newIdemRig(t)
	h := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))

	require.Equal(t, http.StatusUnprocessableEntity, sendKeyed(h, "key-1").Code)
	require.Equal(t, http.StatusConflict, sendKeyed(h, "key-1").Code)
}
