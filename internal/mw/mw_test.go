package mw

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"

	"gym-access-backend/internal/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func do(r http.Handler, method, path string, header map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiter_PerMember(t *testing.T) {
	r := gin.New()
	r.Use(RateLimiter(rate.Limit(0.001), 2))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	alice := map[string]string{HeaderMemberID: "alice"}
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/", alice).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/", alice).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r, http.MethodGet, "/", alice).Code)

	// Another member has their own bucket.
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/", map[string]string{HeaderMemberID: "bob"}).Code)
}

func TestKeyedRateLimiter_ReusesLimiter(t *testing.T) {
	l := NewKeyedRateLimiter(rate.Limit(1), 1)
	assert.Same(t, l.GetLimiter("a"), l.GetLimiter("a"))
	assert.NotSame(t, l.GetLimiter("a"), l.GetLimiter("b"))
}

func TestCache_ServesHitsAndFlushesOnWrite(t *testing.T) {
	store := cache.New(time.Minute, time.Minute)
	calls := 0

	r := gin.New()
	r.Use(FlushOnWrite(store))
	r.GET("/items", Cache(store, time.Minute, nil), func(c *gin.Context) {
		calls++
		c.String(http.StatusOK, "v%d", calls)
	})
	r.POST("/items", func(c *gin.Context) { c.Status(http.StatusCreated) })
	r.GET("/missing", Cache(store, time.Minute, nil), func(c *gin.Context) {
		c.Status(http.StatusNotFound)
	})

	w := do(r, http.MethodGet, "/items", nil)
	assert.Equal(t, "v1", w.Body.String())
	w = do(r, http.MethodGet, "/items", nil)
	assert.Equal(t, "v1", w.Body.String())
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
	assert.Equal(t, 1, calls)

	assert.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/items", nil).Code)
	w = do(r, http.MethodGet, "/items", nil)
	assert.Equal(t, "v2", w.Body.String())

	do(r, http.MethodGet, "/missing", nil)
	_, found := store.Get("/missing")
	assert.False(t, found)
}

func TestMember(t *testing.T) {
	r := gin.New()
	r.Use(Member())
	r.GET("/open", func(c *gin.Context) { c.String(http.StatusOK, MemberID(c)) })
	r.GET("/closed", RequireMember(), func(c *gin.Context) { c.String(http.StatusOK, MemberID(c)) })

	assert.Equal(t, "", do(r, http.MethodGet, "/open", nil).Body.String())
	assert.Equal(t, "alice", do(r, http.MethodGet, "/open", map[string]string{HeaderMemberID: " alice "}).Body.String())

	w := do(r, http.MethodGet, "/closed", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "member_required"))
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/closed", map[string]string{HeaderMemberID: "alice"}).Code)
}

func TestMetrics_RecordsRouteTemplate(t *testing.T) {
	m := metrics.New()
	r := gin.New()
	r.Use(Metrics(m))
	r.GET("/api/equipment/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	do(r, http.MethodGet, "/api/equipment/tm-1", nil)
	do(r, http.MethodGet, "/api/equipment/tm-2", nil)
	do(r, http.MethodGet, "/nowhere", nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `gym_http_requests_total{method="GET",route="/api/equipment/:id",status="200"} 2`)
	assert.Contains(t, body, `gym_http_requests_total{method="GET",route="unmatched",status="404"} 1`)
}
