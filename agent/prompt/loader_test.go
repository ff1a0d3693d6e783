package prompt

import (
	"strings"
	"testing"
)

func TestLoadPromptSet(t *testing.T) {
	t.Parallel()

	set := LoadPromptSet()
	for name, p := range map[string]string{"router": set.Router, "discovery": set.Discovery, "support": set.Support} {
		if p == "" {
			t.Fatalf("%s prompt is empty", name)
		}
	}

	// The router prompt is rendered as an FString template with no variables.
	if strings.ContainsAny(set.Router, "{}") {
		t.Fatal("router prompt must not contain template braces")
	}
	for _, p := range []string{set.Discovery, set.Support} {
		if !strings.Contains(p, "{today}") {
			t.Fatal("workflow prompts must reference {today}")
		}
	}
}
