// Package httpapi implements a generic provider for OpenAI-compatible HTTP
// completion APIs. It speaks two request styles: "responses" (single output
// field, including the output[] item array form) and "chat"
// (choices[0].message.content). When the caller pinned neither style nor
// endpoint and the default responses style fails with an HTTP 404 or a
// timeout, the adapter retries exactly once with the chat style; API surfaces
// silently vary by deployment and this keeps a misconfigured default from
// masking a working chat endpoint.
package httpapi
