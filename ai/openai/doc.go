// Package openai provides an ai.Embedder backed by OpenAI-compatible APIs.
//
// This package implements the ai.Embedder interface using the langchaingo
// client, and works with any OpenAI-compatible endpoint (OpenAI, Ollama,
// LocalAI, vLLM).
package openai
