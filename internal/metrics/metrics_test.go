package metrics

import (
	"bytes"
	"strings"
	"sync"
	"testing"
)

func TestCollectorRequests(t *testing.T) {
	c := NewCollector()

	c.IncrementRequest("/chat")
	c.IncrementRequest("/chat")
	c.IncrementRequest("/auth/refresh")

	requests := c.GetRequests()

	if requests["/chat"] != 2 {
		t.Errorf("Expected /chat=2, got %d", requests["/chat"])
	}
	if requests["/auth/refresh"] != 1 {
		t.Errorf("Expected /auth/refresh=1, got %d", requests["/auth/refresh"])
	}
}

func TestCollectorErrors(t *testing.T) {
	c := NewCollector()

	c.IncrementError("transport")
	c.IncrementError("quota")
	c.IncrementError("quota")

	errs := c.GetErrors()
	if errs["transport"] != 1 || errs["quota"] != 2 {
		t.Errorf("unexpected error counts: %v", errs)
	}
}

func TestCollectorCounters(t *testing.T) {
	c := NewCollector()

	c.IncrementRefresh()
	c.IncrementLogout()
	c.IncrementLogout()
	c.AddListings(3)
	c.AddListings(2)
	c.IncrementMessages("user")

	if c.GetRefreshes() != 1 {
		t.Errorf("Expected refreshes=1, got %d", c.GetRefreshes())
	}
	if c.GetLogouts() != 2 {
		t.Errorf("Expected logouts=2, got %d", c.GetLogouts())
	}
	if c.GetListings() != 5 {
		t.Errorf("Expected listings=5, got %d", c.GetListings())
	}
	if c.GetMessages()["user"] != 1 {
		t.Errorf("Expected user messages=1, got %d", c.GetMessages()["user"])
	}
}

func TestCollectorConcurrent(t *testing.T) {
	c := NewCollector()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.IncrementRequest("/chat")
			c.IncrementError("decode")
		}()
	}
	wg.Wait()

	if c.GetRequests()["/chat"] != 50 {
		t.Errorf("Expected 50 requests, got %d", c.GetRequests()["/chat"])
	}
	if c.GetErrors()["decode"] != 50 {
		t.Errorf("Expected 50 errors, got %d", c.GetErrors()["decode"])
	}
}

func TestWritePrometheus(t *testing.T) {
	c := NewCollector()
	c.IncrementRequest("/chat")
	c.IncrementError("auth")
	c.IncrementRefresh()
	c.AddListings(4)

	var buf bytes.Buffer
	c.WritePrometheus(&buf)
	output := buf.String()

	expected := []string{
		"# TYPE haven_requests_total counter",
		`haven_requests_total{endpoint="/chat"} 1`,
		`haven_chat_errors_total{kind="auth"} 1`,
		"haven_token_refreshes_total 1",
		"haven_logouts_total 0",
		"haven_listings_total 4",
	}
	for _, want := range expected {
		if !strings.Contains(output, want) {
			t.Errorf("Output missing %q\n%s", want, output)
		}
	}
}

func TestDefaultCollector(t *testing.T) {
	if Default() == nil {
		t.Fatal("Default() returned nil")
	}
	if Default() != Default() {
		t.Error("Default() should return the same collector")
	}
}
