package baton

import (
	"reflect"

	"github.com/openai/openai-go"
)

// AgentFunction is a local function the model may request through tool calling.
// The dispatcher resolves requested tool names against the agent's functions and
// feeds each function's result back into the conversation.
type AgentFunction interface {
	// Call executes the function with the arguments decoded from the tool call.
	Call(args map[string]interface{}) (interface{}, error)
	// Name returns the tool name announced to the model.
	Name() string
	// Description returns the tool description announced to the model.
	Description() string
	// Parameters declares the function's arguments for the tool manifest.
	Parameters() []Parameter
}

// Parameter describes one argument of an AgentFunction in the tool manifest.
type Parameter struct {
	Name        string
	Description string
	Type        reflect.Type
	Required    bool
}

// SimpleAgentFunction adapts a plain Go closure into an AgentFunction.
type SimpleAgentFunction struct {
	CallFn         func(map[string]interface{}) (interface{}, error)
	NameString     string
	DescString     string
	ParametersList []Parameter
}

func (f *SimpleAgentFunction) Call(args map[string]interface{}) (interface{}, error) {
	return f.CallFn(args)
}

func (f *SimpleAgentFunction) Name() string {
	return f.NameString
}

func (f *SimpleAgentFunction) Description() string {
	return f.DescString
}

func (f *SimpleAgentFunction) Parameters() []Parameter {
	return f.ParametersList
}

// NewAgentFunction wraps fn as an AgentFunction with the given name,
// description and parameter declarations.
func NewAgentFunction(name string, desc string, fn func(map[string]interface{}) (interface{}, error), parameters []Parameter) AgentFunction {
	return &SimpleAgentFunction{
		CallFn:         fn,
		NameString:     name,
		DescString:     desc,
		ParametersList: parameters,
	}
}

// Agent bundles a model, its instructions and the functions it may call.
type Agent struct {
	// Name identifies the agent in transcripts and debug output.
	Name string

	// Model is the completion model to request (e.g. "gpt-4o").
	Model string

	// Instructions is the system prompt: either a string, a func() string, or
	// a func(map[string]interface{}) string receiving the context variables.
	Instructions interface{}

	// Functions the model may invoke through tool calls.
	Functions []AgentFunction

	// ToolChoice optionally forces how the model uses tools.
	ToolChoice *openai.ChatCompletionToolChoiceOptionUnionParam

	// ParallelToolCalls allows the model to request several calls in one turn.
	ParallelToolCalls bool
}

// NewAgent creates an Agent with defaults suitable for the demos.
func NewAgent(name string) *Agent {
	return &Agent{
		Name:              name,
		Model:             "gpt-4o",
		Instructions:      "You are a helpful assistant.",
		Functions:         make([]AgentFunction, 0),
		ToolChoice:        nil,
		ParallelToolCalls: true,
	}
}

// WithModel sets the agent's model and returns the agent for chaining.
func (a *Agent) WithModel(model string) *Agent {
	a.Model = model
	return a
}

// WithInstructions sets the agent's instructions and returns the agent for chaining.
func (a *Agent) WithInstructions(instructions interface{}) *Agent {
	a.Instructions = instructions
	return a
}

// AddFunction registers a callable function and returns the agent for chaining.
func (a *Agent) AddFunction(f AgentFunction) *Agent {
	a.Functions = append(a.Functions, f)
	return a
}

// Response is the outcome of one dispatcher run: the records appended to the
// transcript, the agent active at the end, and the final context variables.
type Response struct {
	Messages         []map[string]interface{}
	Agent            *Agent
	ContextVariables map[string]interface{}
}

// Result is the typed return of an AgentFunction. Value becomes the tool
// record's content; a non-nil Agent hands the conversation over to it.
type Result struct {
	Value            string
	Agent            *Agent
	ContextVariables map[string]interface{}
}
