package limiter

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAllowBurstThenThrottle(t *testing.T) {
	rl := New(60, 2, 0)
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		if !rl.Allow("a") {
			t.Fatalf("request %d rejected inside burst", i+1)
		}
		rl.Done()
	}
	if rl.Allow("a") {
		t.Error("third request should be throttled")
	}
	if !rl.Allow("b") {
		t.Error("other clients keep their own bucket")
	}
	rl.Done()

	now = now.Add(time.Second)
	if !rl.Allow("a") {
		t.Error("token should refill after one second at 60/min")
	}
}

func TestMaxConcurrent(t *testing.T) {
	rl := New(600, 10, 1)

	if !rl.Allow("a") {
		t.Fatal("first request rejected")
	}
	if rl.Allow("b") {
		t.Error("second concurrent request should be rejected")
	}
	rl.Done()
	if !rl.Allow("b") {
		t.Error("slot should be free after Done")
	}
}

func TestSweep(t *testing.T) {
	rl := New(60, 1, 0)
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	rl.Allow("a")
	rl.Done()
	now = now.Add(time.Hour)
	rl.Sweep(time.Minute)

	if len(rl.clients) != 0 {
		t.Errorf("got %d clients after sweep, want 0", len(rl.clients))
	}
}

func TestMiddleware(t *testing.T) {
	rl := New(60, 1, 0)
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	codes := make([]int, 2)
	for i := range codes {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/labs/1/run", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		h.ServeHTTP(rec, req)
		codes[i] = rec.Code
	}

	if codes[0] != http.StatusNoContent || codes[1] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [204 429]", codes)
	}
}
