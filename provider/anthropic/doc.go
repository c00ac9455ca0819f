// Package anthropic implements a provider backed by the official Anthropic Go
// SDK (Messages API). The API is stateless per call, so results carry no
// backend session id.
package anthropic
