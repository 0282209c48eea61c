// Copyright (c) FlowRunner Authors.
// Licensed under the MIT License.

/*
Package planner asks an LLM to turn a natural-language request into a
workflow.Graph.

The system instruction lists the action catalog, the structural rules and a
worked example; the user turn is "User Request: <prompt>". The response is
requested as application/json, stripped of code fences, checked against the
embedded graph JSON Schema and decoded. Plans missing nodes or
execution_order, or failing workflow.Validate when Config.Validate is set,
are reported as INVALID_PLAN.

Plans are cached by the SHA-256 of the whitespace-normalized prompt, and
concurrent identical prompts share a single model call.
*/
package planner
