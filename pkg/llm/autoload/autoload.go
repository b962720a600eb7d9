// Package autoload blank-imports every LLM provider implementation so their
// init() functions register with the llm package just by importing this
// package for its side effects.
package autoload

import (
	_ "github.com/jpetree331/stateful-agent/pkg/llm/gemini"
	_ "github.com/jpetree331/stateful-agent/pkg/llm/ollama"
	_ "github.com/jpetree331/stateful-agent/pkg/llm/openailm"
)
