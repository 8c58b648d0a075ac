package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lehigh-university-libraries/imagegen/internal/providers"
)

func TestComplete(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"response":"{\"dreamy\":0.9}"}`))
	}))
	defer server.Close()

	o := &Ollama{URL: server.URL, Client: server.Client()}
	out, err := o.Complete(context.Background(), providers.Config{Model: "llama3.2", Prompt: "classify", JSON: true})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if out != `{"dreamy":0.9}` {
		t.Errorf("Complete() = %q", out)
	}
	if got["format"] != "json" {
		t.Errorf("Expected json format to be requested, got %v", got["format"])
	}
	if got["stream"] != false {
		t.Errorf("Expected stream=false, got %v", got["stream"])
	}
}

func TestCompleteNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	o := &Ollama{URL: server.URL, Client: server.Client()}
	if _, err := o.Complete(context.Background(), providers.Config{Model: "missing"}); err == nil {
		t.Error("Expected error for non-200 response")
	}
}
