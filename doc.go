// Package baton orchestrates tool-calling agents that drive a live music
// set over OSC. It pairs a chat-completion dispatch loop with locally
// registered functions: the model decides which functions to call, baton
// invokes them, feeds the results back, and returns the final reply.
//
// Features:
//   - Agents with per-agent model, instructions and function sets
//   - Tool-call dispatch with typed parameters and JSON schemas
//   - Agent handoffs through function return values
//   - Streaming responses with incremental content and tool-call events
//   - YAML-defined multi-step routines with per-step deadlines
//   - OpenAI and Azure OpenAI backends behind one client interface
//
// The companion package live connects agents to a running Ableton Live
// instance through the AbletonOSC protocol; see its documentation for the
// bridge and the ready-made tempo functions.
package baton
