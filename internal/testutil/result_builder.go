package testutil

import (
	"fmt"

	"github.com/hupe1980/agentrelay/core"
)

// FinishResult builds an invocation result whose stdout is a well-formed
// finish decision with the given final message.
func FinishResult(message string) core.InvocationResult {
	return core.InvocationResult{
		Stdout: fmt.Sprintf(`{"action":"finish","message":%q}`, message),
	}
}

// DelegateResult builds an invocation result whose stdout is a well-formed
// delegate decision handing message to the target agent.
func DelegateResult(target, message string) core.InvocationResult {
	return core.InvocationResult{
		Stdout: fmt.Sprintf(`{"action":"delegate_to_agent","target_agent_id":%q,"message":%q}`, target, message),
	}
}
