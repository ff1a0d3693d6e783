package specialist

import (
	"context"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"

	routerx "github.com/tanpawarit/bitebot/agent/agents/router"
	contractx "github.com/tanpawarit/bitebot/agent/contract"
	llmx "github.com/tanpawarit/bitebot/agent/llm"
	promptx "github.com/tanpawarit/bitebot/agent/prompt"
)

type registryImpl struct {
	router    contractx.Router
	discovery contractx.Workflow
	support   contractx.Workflow
}

func (r *registryImpl) Router() contractx.Router {
	return r.router
}

func (r *registryImpl) Discovery() contractx.Workflow {
	return r.discovery
}

func (r *registryImpl) Support() contractx.Workflow {
	return r.support
}

// Models are the chat models of the three agents.
type Models struct {
	Router    einomodel.ToolCallingChatModel
	Discovery einomodel.ToolCallingChatModel
	Support   einomodel.ToolCallingChatModel
}

// NewModels creates one OpenRouter-backed chat model per agent.
func NewModels(ctx context.Context, cfg llmx.Config) (Models, error) {
	if err := cfg.Validate(); err != nil {
		return Models{}, err
	}

	var out Models
	for _, target := range []struct {
		agent contractx.AgentType
		dst   *einomodel.ToolCallingChatModel
	}{
		{contractx.AgentTypeRouter, &out.Router},
		{contractx.AgentTypeDiscovery, &out.Discovery},
		{contractx.AgentTypeSupport, &out.Support},
	} {
		modelCfg := cfg.OpenRouterFor(target.agent)
		m, err := modelCfg.New(ctx)
		if err != nil {
			return Models{}, fmt.Errorf("%w: create %s model: %v", contractx.ErrModelInvoke, target.agent, err)
		}
		*target.dst = m
	}
	return out, nil
}

func NewRegistry(
	ctx context.Context,
	cfg llmx.Config,
	models Models,
	tools contractx.ToolGateway,
	opts Options,
) (contractx.Registry, error) {
	prompts := promptx.LoadPromptSet()
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = cfg.MaxToolSteps
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = cfg.HistoryLimit
	}

	router, err := routerx.New(ctx, models.Router, prompts.Router, cfg.RouterTimeout)
	if err != nil {
		return nil, err
	}
	discovery, err := newWorkflow(ctx, contractx.AgentTypeDiscovery, models.Discovery, prompts.Discovery, tools, opts)
	if err != nil {
		return nil, err
	}
	support, err := newWorkflow(ctx, contractx.AgentTypeSupport, models.Support, prompts.Support, tools, opts)
	if err != nil {
		return nil, err
	}

	return &registryImpl{
		router:    router,
		discovery: discovery,
		support:   support,
	}, nil
}
