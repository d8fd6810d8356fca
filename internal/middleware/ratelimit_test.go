package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func postAnswer(router *gin.Engine, ip string) int {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/answers", nil)
	req.RemoteAddr = ip + ":12345"
	router.ServeHTTP(w, req)
	return w.Code
}

// The answer routes run behind 10 rps with a burst of 20.
func TestRateLimit_AnswerRouteBudget(t *testing.T) {
	rl := NewRateLimiter(10, 20)

	router := gin.New()
	router.Use(rl.Middleware())
	router.POST("/api/answers", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// The full burst passes
	for i := 0; i < 20; i++ {
		if code := postAnswer(router, "192.168.1.1"); code != http.StatusOK {
			t.Fatalf("request %d within burst: expected %d, got %d", i+1, http.StatusOK, code)
		}
	}

	// Past the burst, refill at 10 rps cannot keep up with a tight loop
	blocked := 0
	for i := 0; i < 20; i++ {
		if postAnswer(router, "192.168.1.1") == http.StatusTooManyRequests {
			blocked++
		}
	}
	if blocked == 0 {
		t.Error("sustained flood past the burst should see 429s")
	}
}

func TestRateLimit_BlocksExcessiveRequests(t *testing.T) {
	rl := NewRateLimiter(1, 2) // 1 rps, burst 2

	router := gin.New()
	router.Use(rl.Middleware())
	router.POST("/api/answers", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Send burst+3 requests rapidly, last one should be blocked
	var lastCode int
	for i := 0; i < 5; i++ {
		lastCode = postAnswer(router, "10.0.0.1")
	}

	if lastCode != http.StatusTooManyRequests {
		t.Errorf("expected status %d after burst exceeded, got %d", http.StatusTooManyRequests, lastCode)
	}
}

func TestRateLimit_IndependentPerIP(t *testing.T) {
	rl := NewRateLimiter(1, 1) // 1 rps, burst 1

	router := gin.New()
	router.Use(rl.Middleware())
	router.POST("/api/answers", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// First IP uses its burst
	if code := postAnswer(router, "10.0.0.1"); code != http.StatusOK {
		t.Errorf("IP1 first request: expected %d, got %d", http.StatusOK, code)
	}

	// Second IP should still have its own burst
	if code := postAnswer(router, "10.0.0.2"); code != http.StatusOK {
		t.Errorf("IP2 first request: expected %d, got %d", http.StatusOK, code)
	}

	// First IP is now exhausted while the second keeps its refill
	if code := postAnswer(router, "10.0.0.1"); code != http.StatusTooManyRequests {
		t.Errorf("IP1 second request: expected %d, got %d", http.StatusTooManyRequests, code)
	}
}
