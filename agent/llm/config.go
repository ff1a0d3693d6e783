package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/bitebot/agent/contract"
	openrouterx "github.com/tanpawarit/bitebot/pkg/openrouter"
)

type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.3"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true" default:"BiteBot"`

	RouterModel          string  `envconfig:"ROUTER_MODEL" split_words:"true"`
	DiscoveryModel       string  `envconfig:"DISCOVERY_MODEL" split_words:"true"`
	SupportModel         string  `envconfig:"SUPPORT_MODEL" split_words:"true"`
	RouterTemperature    float32 `envconfig:"ROUTER_TEMPERATURE" split_words:"true" default:"0"`
	DiscoveryTemperature float32 `envconfig:"DISCOVERY_TEMPERATURE" split_words:"true" default:"-1"`
	SupportTemperature   float32 `envconfig:"SUPPORT_TEMPERATURE" split_words:"true" default:"-1"`

	RouterTimeout time.Duration `envconfig:"ROUTER_TIMEOUT" split_words:"true" default:"10s"`
	MaxToolSteps  int           `envconfig:"MAX_TOOL_STEPS" split_words:"true" default:"8"`
	HistoryLimit  int           `envconfig:"HISTORY_LIMIT" split_words:"true" default:"40"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: llm api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	if c.MaxToolSteps <= 0 {
		return fmt.Errorf("%w: max tool steps must be > 0", contractx.ErrValidation)
	}
	return nil
}

func (c Config) OpenRouterFor(agentType contractx.AgentType) openrouterx.Config {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature

	switch agentType {
	case contractx.AgentTypeRouter:
		if v := strings.TrimSpace(c.RouterModel); v != "" {
			modelName = v
		}
		if c.RouterTemperature >= 0 {
			temp = c.RouterTemperature
		}
	case contractx.AgentTypeDiscovery:
		if v := strings.TrimSpace(c.DiscoveryModel); v != "" {
			modelName = v
		}
		if c.DiscoveryTemperature >= 0 {
			temp = c.DiscoveryTemperature
		}
	case contractx.AgentTypeSupport:
		if v := strings.TrimSpace(c.SupportModel); v != "" {
			modelName = v
		}
		if c.SupportTemperature >= 0 {
			temp = c.SupportTemperature
		}
	}

	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}
