// Package openai implements a provider backed by the official OpenAI Go SDK
// (Chat Completions API). The API is stateless per call, so results carry no
// backend session id; conversation continuity is the caller's concern.
package openai
