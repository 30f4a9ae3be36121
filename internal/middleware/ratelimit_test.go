package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRateLimit_AllowsNormalRequests(t *testing.T) {
	rl := NewRateLimiter(10, 10) // 10 rps, burst 10
	defer rl.Stop()

	router := gin.New()
	router.Use(rl.Middleware())
	router.GET("/test", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// First request should pass
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/test", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}
}

func TestRateLimit_BlocksExcessiveRequests(t *testing.T) {
	rl := NewRateLimiter(1, 2) // 1 rps, burst 2
	defer rl.Stop()

	router := gin.New()
	router.Use(rl.Middleware())
	router.GET("/test", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Send burst+1 requests rapidly, last one should be blocked
	var lastCode int
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/test", nil)
		req.RemoteAddr = "10.0.0.1:12345"
		router.ServeHTTP(w, req)
		lastCode = w.Code
	}

	if lastCode != http.StatusTooManyRequests {
		t.Errorf("expected status %d after burst exceeded, got %d", http.StatusTooManyRequests, lastCode)
	}
}

func TestRateLimit_IndependentPerIP(t *testing.T) {
	rl := NewRateLimiter(1, 1) // 1 rps, burst 1
	defer rl.Stop()

	router := gin.New()
	router.Use(rl.Middleware())
	router.GET("/test", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// First IP uses its burst
	w1 := httptest.NewRecorder()
	req1, _ := http.NewRequest("GET", "/test", nil)
	req1.RemoteAddr = "10.0.0.1:12345"
	router.ServeHTTP(w1, req1)

	if w1.Code != http.StatusOK {
		t.Errorf("IP1 first request: expected %d, got %d", http.StatusOK, w1.Code)
	}

	// Second IP should still have its own burst
	w2 := httptest.NewRecorder()
	req2, _ := http.NewRequest("GET", "/test", nil)
	req2.RemoteAddr = "10.0.0.2:12345"
	router.ServeHTTP(w2, req2)

	if w2.Code != http.StatusOK {
		t.Errorf("IP2 first request: expected %d, got %d", http.StatusOK, w2.Code)
	}
}

func TestHourlyRateLimiter_EleventhSubmissionRejected(t *testing.T) {
	rl := NewHourlyRateLimiter(10, 10)
	defer rl.Stop()

	router := gin.New()
	router.Use(rl.Middleware())
	router.POST("/api/reviews", func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{"status": "ok"})
	})

	for i := 0; i < 10; i++ {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/reviews", nil)
		req.RemoteAddr = "10.0.0.9:4000"
		router.ServeHTTP(w, req)
		if w.Code != http.StatusCreated {
			t.Fatalf("request %d: expected %d, got %d", i+1, http.StatusCreated, w.Code)
		}
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/reviews", nil)
	req.RemoteAddr = "10.0.0.9:4000"
	router.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("11th request: expected %d, got %d", http.StatusTooManyRequests, w.Code)
	}
	if !strings.Contains(w.Body.String(), "Rate limit exceeded") {
		t.Errorf("unexpected body %s", w.Body.String())
	}
}

func TestDailyRateLimiter_AllowanceThenReject(t *testing.T) {
	rl := NewDailyRateLimiter(240)
	defer rl.Stop()

	router := gin.New()
	router.Use(rl.Middleware())
	router.GET("/api/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	send := func() int {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/stats", nil)
		req.RemoteAddr = "10.0.0.7:4000"
		router.ServeHTTP(w, req)
		return w.Code
	}
	for i := 0; i < 240; i++ {
		if code := send(); code != http.StatusOK {
			t.Fatalf("request %d: expected %d, got %d", i+1, http.StatusOK, code)
		}
	}
	if code := send(); code != http.StatusTooManyRequests {
		t.Fatalf("241st request: expected %d, got %d", http.StatusTooManyRequests, code)
	}
	if rl.idleTTL < 24*time.Hour-time.Second {
		t.Errorf("idleTTL = %v, expected a full day", rl.idleTTL)
	}
}

func TestRateLimiter_NilPassesThrough(t *testing.T) {
	var rl *RateLimiter
	defer rl.Stop()

	router := gin.New()
	router.Use(rl.Middleware())
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/test", nil)
		router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: expected %d, got %d", i+1, http.StatusOK, w.Code)
		}
	}
}

func TestIdleTTL_CoversRefill(t *testing.T) {
	if got := idleTTL(10.0/3600, 10); got < time.Hour-time.Second || got > time.Hour+time.Second {
		t.Errorf("idleTTL(10/h, 10) = %v, expected 1h", got)
	}
	if got := idleTTL(100, 10); got != minIdleTTL {
		t.Errorf("idleTTL(100rps, 10) = %v, expected %v", got, minIdleTTL)
	}
}

func TestRateLimiter_EvictIdle(t *testing.T) {
	rl := NewRateLimiter(100, 1)
	defer rl.Stop()

	rl.getLimiter("10.0.0.1")
	rl.getLimiter("10.0.0.2")
	rl.evictIdle(time.Now())
	if rl.size() != 2 {
		t.Fatalf("fresh entries evicted, size = %d", rl.size())
	}

	rl.evictIdle(time.Now().Add(minIdleTTL + time.Second))
	if rl.size() != 0 {
		t.Errorf("idle entries kept, size = %d", rl.size())
	}
}

func TestRateLimiter_StopTwice(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	rl.Stop()
	rl.Stop()
}
