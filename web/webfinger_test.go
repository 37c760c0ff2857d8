package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func performWebfinger(t *testing.T, resource string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	conf := testConf()

	g := gin.New()
	g.GET("/.well-known/webfinger", func(c *gin.Context) {
		HandleWebfinger(c, conf)
	})

	req := httptest.NewRequest("GET", "/.well-known/webfinger"+resource, nil)
	w := httptest.NewRecorder()
	g.ServeHTTP(w, req)
	return w
}

func TestWebfingerMissingResource(t *testing.T) {
	w := performWebfinger(t, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("Missing resource should be 400, got %d", w.Code)
	}
}

func TestWebfingerMalformedResource(t *testing.T) {
	for _, resource := range []string{
		"?resource=alice@local.example",
		"?resource=acct:",
		"?resource=acct:alice",
		"?resource=acct:@local.example",
	} {
		w := performWebfinger(t, resource)
		if w.Code != http.StatusBadRequest {
			t.Errorf("Resource %q should be 400, got %d", resource, w.Code)
		}
	}
}

func TestWebfingerForeignDomain(t *testing.T) {
	w := performWebfinger(t, "?resource=acct:alice@other.example")
	if w.Code != http.StatusNotFound {
		t.Errorf("Foreign domain should be 404, got %d", w.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Error body should be JSON: %v", err)
	}
	if body["detail"] != "Not Found" {
		t.Errorf("Expected 'Not Found' detail, got %v", body["detail"])
	}
}
