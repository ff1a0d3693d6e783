package llm

import (
	"errors"
	"testing"

	contractx "github.com/tanpawarit/bitebot/agent/contract"
)

func TestOpenRouterForOverrides(t *testing.T) {
	t.Parallel()

	cfg := Config{
		APIKey:               " key ",
		Model:                "openai/gpt-4o-mini",
		Temperature:          0.3,
		MaxCompletionToken:   1000,
		MaxToolSteps:         8,
		RouterModel:          "openai/gpt-4.1-nano",
		RouterTemperature:    0,
		DiscoveryTemperature: -1,
		SupportModel:         "anthropic/claude-3.5-haiku",
		SupportTemperature:   0.1,
	}

	router := cfg.OpenRouterFor(contractx.AgentTypeRouter)
	if router.Model != "openai/gpt-4.1-nano" || router.Temperature != 0 {
		t.Fatalf("unexpected router config: %+v", router)
	}
	if router.APIKey != "key" {
		t.Fatalf("api key not trimmed: %q", router.APIKey)
	}

	discovery := cfg.OpenRouterFor(contractx.AgentTypeDiscovery)
	if discovery.Model != "openai/gpt-4o-mini" || discovery.Temperature != 0.3 {
		t.Fatalf("discovery must fall back to defaults: %+v", discovery)
	}
	if discovery.MaxCompletionToken == nil || *discovery.MaxCompletionToken != 1000 {
		t.Fatalf("unexpected max completion token: %v", discovery.MaxCompletionToken)
	}

	support := cfg.OpenRouterFor(contractx.AgentTypeSupport)
	if support.Model != "anthropic/claude-3.5-haiku" || support.Temperature != 0.1 {
		t.Fatalf("unexpected support config: %+v", support)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	if err := (Config{Model: "m", MaxToolSteps: 1}).Validate(); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation for missing key, got %v", err)
	}
	if err := (Config{APIKey: "k", Model: "m"}).Validate(); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation for zero tool steps, got %v", err)
	}
	if err := (Config{APIKey: "k", Model: "m", MaxToolSteps: 4}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
