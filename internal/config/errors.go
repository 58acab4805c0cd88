package config

import "errors"

var errMissingAgentAPIKey = errors.New("config: AGENT_LLM_API_KEY is required")
