package baton

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Routine is a scripted sequence of agent steps, typically used to walk a
// live set through a fixed procedure (read the tempo, adjust it, confirm).
// Routines are plain data and can be loaded from or saved to YAML.
type Routine struct {
	// Name identifies the routine.
	Name string `yaml:"name" json:"name"`
	// Model is the completion model used by every step.
	Model string `yaml:"model" json:"model"`
	// MaxTurns caps the dispatcher loop within each step.
	MaxTurns int `yaml:"max_turns" json:"max_turns"`
	// System is the shared system prompt for the routine.
	System string `yaml:"system" json:"system"`
	// Steps run in order; each step hands off to the next.
	Steps []RoutineStep `yaml:"steps" json:"steps"`
	// Verbose enables step-level progress output.
	Verbose bool `yaml:"verbose" json:"verbose"`
	// Timeout bounds the whole routine.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// RoutineStep is one stage of a Routine: an agent with its own instructions,
// inputs, functions and deadline.
type RoutineStep struct {
	// Name is the step's identifier, also used for handoff function names.
	Name string `yaml:"name" json:"name"`
	// Instructions is the step agent's prompt.
	Instructions string `yaml:"instructions" json:"instructions"`
	// Inputs are values merged into the context variables for this step.
	Inputs map[string]interface{} `yaml:"inputs" json:"inputs"`
	// Timeout bounds this step; zero inherits a share of the routine timeout.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	// Agent runs the step. Initialize creates one when nil.
	Agent *Agent `yaml:"-" json:"-"`
	// Functions available to the step's agent.
	Functions []AgentFunction `yaml:"-" json:"-"`
}

// RoutineStepResult captures one step's outcome.
type RoutineStepResult struct {
	StepName string
	Content  string
	Messages []map[string]interface{}
	Error    error
}

// Initialize fills in defaults and wires the steps together: every step gets
// an agent, a deadline, and (except the last) a handoff function to the next
// step. The routine's System prompt is folded into each step agent's
// instructions. Initialize is idempotent; Run calls it again so functions
// attached to Steps after loading are picked up.
func (r *Routine) Initialize() error {
	if r.MaxTurns == 0 {
		r.MaxTurns = 30
	}
	if r.Timeout == 0 {
		r.Timeout = 5 * time.Minute
	}

	if len(r.Steps) == 0 {
		return fmt.Errorf("routine must have at least one step")
	}

	for i := range r.Steps {
		step := &r.Steps[i]
		if step.Agent == nil {
			step.Agent = NewAgent(step.Name)
		}
		if step.Timeout == 0 {
			step.Timeout = r.Timeout / time.Duration(len(r.Steps))
		}

		instructions := step.Instructions
		if r.System != "" {
			instructions = r.System + "\n\n" + step.Instructions
		}
		if i < len(r.Steps)-1 {
			instructions += "\n\nHand off to the next step once your task is complete."
		}
		step.Agent.WithInstructions(instructions)

		for _, f := range step.Functions {
			if f != nil && !agentHasFunction(step.Agent, f.Name()) {
				step.Agent.AddFunction(f)
			}
		}

		if i < len(r.Steps)-1 {
			nextStep := &r.Steps[i+1]
			handoffName := fmt.Sprintf("handoffTo%s", nextStep.Name)
			if !agentHasFunction(step.Agent, handoffName) {
				handoff := NewAgentFunction(
					handoffName,
					fmt.Sprintf("Hand off to the %s step", nextStep.Name),
					func(args map[string]interface{}) (interface{}, error) {
						return &Result{
							Value: fmt.Sprintf("Handing off to %s...", nextStep.Name),
							Agent: nextStep.Agent,
						}, nil
					},
					[]Parameter{},
				)
				step.Agent.AddFunction(handoff)
			}
		}
	}

	return nil
}

func agentHasFunction(agent *Agent, name string) bool {
	for _, f := range agent.Functions {
		if f != nil && f.Name() == name {
			return true
		}
	}
	return false
}

// LoadRoutine reads and initializes a Routine from a YAML file.
func LoadRoutine(path string) (*Routine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read routine file: %w", err)
	}

	var routine Routine
	if err := yaml.Unmarshal(data, &routine); err != nil {
		return nil, fmt.Errorf("failed to unmarshal routine: %w", err)
	}

	if err := routine.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize routine: %w", err)
	}

	return &routine, nil
}

// Save writes the routine's YAML form to path. Agents and functions are not
// serialized; a loaded routine reattaches them via the Steps slice.
func (r *Routine) Save(path string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal routine: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write routine file: %w", err)
	}

	return nil
}

// executeStep runs one step with its own deadline, carrying over the context
// variables and transcript from earlier steps.
func (r *Routine) executeStep(ctx context.Context, client *Baton, step *RoutineStep, contextVars map[string]interface{}, prevMessages []map[string]interface{}) (*RoutineStepResult, error) {
	stepCtx, cancel := context.WithTimeout(ctx, step.Timeout)
	defer cancel()

	if step.Agent == nil {
		return nil, fmt.Errorf("step %s has no agent configured", step.Name)
	}

	mergedVars := make(map[string]interface{}, len(contextVars)+len(step.Inputs))
	MergeFields(mergedVars, contextVars)
	MergeFields(mergedVars, step.Inputs)

	messages := make([]map[string]interface{}, 0, len(prevMessages)+1)
	messages = append(messages, prevMessages...)
	messages = append(messages, map[string]interface{}{
		"role":    "user",
		"content": fmt.Sprintf("Context: %v", mergedVars),
	})

	response, err := client.Run(stepCtx, step.Agent, messages, mergedVars, r.Model, false, r.Verbose, r.MaxTurns, true, false)
	if err != nil {
		return &RoutineStepResult{
			StepName: step.Name,
			Error:    fmt.Errorf("step %s execution failed: %w", step.Name, err),
		}, err
	}

	if response == nil || len(response.Messages) == 0 {
		return nil, fmt.Errorf("step %s returned no response", step.Name)
	}

	content, _ := response.Messages[len(response.Messages)-1]["content"].(string)
	return &RoutineStepResult{
		StepName: step.Name,
		Content:  content,
		Messages: response.Messages,
	}, nil
}

// Run executes the routine's steps in order and returns the last step's
// content together with the accumulated transcript.
func (r *Routine) Run(ctx context.Context, client *Baton) (string, []map[string]interface{}, error) {
	if err := r.Initialize(); err != nil {
		return "", nil, fmt.Errorf("failed to initialize routine: %w", err)
	}

	routineCtx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	contextVars := make(map[string]interface{})
	var messages []map[string]interface{}
	var lastContent string

	for i, step := range r.Steps {
		select {
		case <-routineCtx.Done():
			return "", nil, fmt.Errorf("routine cancelled: %w", routineCtx.Err())
		default:
			result, err := r.executeStep(routineCtx, client, &step, contextVars, messages)
			if err != nil {
				if r.Verbose {
					fmt.Printf("Step %s failed: %v\n", step.Name, err)
				}
				return "", nil, fmt.Errorf("routine failed at step %d (%s): %w", i+1, step.Name, err)
			}

			if result != nil {
				messages = result.Messages
				lastContent = result.Content
				contextVars[fmt.Sprintf("%sResult", step.Name)] = result.Content
			}
		}
	}

	return lastContent, messages, nil
}
