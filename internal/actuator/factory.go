package actuator

import (
	"fmt"

	"normcode/internal/config"
)

// NewClient builds an LLM client from the llm section of the configuration.
func NewClient(cfg *config.Config) (LLMClient, error) {
	timeout, err := cfg.LLMTimeout()
	if err != nil {
		return nil, err
	}

	switch cfg.LLM.Provider {
	case "openai-compat", "openai", "local", "":
		return NewOpenAICompatClient(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model, timeout), nil
	case "gemini", "genai":
		return NewGeminiClient(cfg.LLM.APIKey, cfg.LLM.Model)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.LLM.Provider)
	}
}

// NewDefaultRegistry builds a registry holding the standard actuators:
// paradigm and judgement backed by the configured LLM client, and the
// script runner.
func NewDefaultRegistry(cfg *config.Config, paradigm *ParadigmActuator) *Registry {
	r := NewRegistry()
	r.MustRegister(paradigm)
	r.MustRegister(&JudgementActuator{Inner: paradigm})

	timeout, err := cfg.CallTimeout()
	if err != nil {
		timeout = 0 // Validate catches this earlier; fall back to the default
	}
	r.MustRegister(NewScriptActuator(timeout))
	return r
}
