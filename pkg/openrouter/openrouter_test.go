package openrouter

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestChatModelConfig(t *testing.T) {
	t.Parallel()

	maxTokens := 512
	cfg := &Config{
		BaseURL:            " https://openrouter.ai/api/v1/ ",
		APIKey:             " key ",
		Model:              "x-ai/grok-4.1-fast",
		MaxCompletionToken: &maxTokens,
		Temperature:        0.2,
		Timeout:            5 * time.Second,
	}

	conf := cfg.chatModelConfig()
	if conf.BaseURL != "https://openrouter.ai/api/v1" {
		t.Fatalf("BaseURL = %q", conf.BaseURL)
	}
	if conf.APIKey != "key" {
		t.Fatalf("APIKey = %q", conf.APIKey)
	}
	if conf.Temperature == nil || *conf.Temperature != 0.2 {
		t.Fatalf("Temperature = %v", conf.Temperature)
	}
	if conf.ExtraFields["reasoning"] == nil {
		t.Fatal("expected reasoning to be excluded for blacklisted model")
	}
	if conf.HTTPClient != nil {
		t.Fatal("expected default http client without attribution headers")
	}

	cfg.Model = "openai/gpt-4o-mini"
	cfg.SiteName = "BiteBot"
	conf = cfg.chatModelConfig()
	if conf.ExtraFields != nil {
		t.Fatalf("unexpected extra fields: %v", conf.ExtraFields)
	}
	if conf.HTTPClient == nil || conf.HTTPClient.Timeout != 5*time.Second {
		t.Fatalf("expected http client with timeout, got %+v", conf.HTTPClient)
	}
}

func TestHeaderTransport(t *testing.T) {
	t.Parallel()

	var referer, title string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		referer = r.Header.Get("HTTP-Referer")
		title = r.Header.Get("X-Title")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	cfg := &Config{SiteURL: "https://bitebot.example", SiteName: "BiteBot"}
	client := &http.Client{Transport: &headerTransport{headers: cfg.attributionHeaders(), next: http.DefaultTransport}}

	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()

	if referer != "https://bitebot.example" || title != "BiteBot" {
		t.Fatalf("headers = %q / %q", referer, title)
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	t.Parallel()

	if NewClient(Config{}) != nil {
		t.Fatal("expected nil client without api key")
	}
	if NewClient(Config{APIKey: "k", BaseURL: "https://api.openai.com/v1"}) == nil {
		t.Fatal("expected client")
	}
}
