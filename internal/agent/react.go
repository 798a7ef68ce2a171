package agent

import (
	"context"
	"strings"

	"github.com/ashita-ai/kotae/internal/llm"
	"github.com/ashita-ai/kotae/internal/model"
)

// finalAnswerPhrase terminates the tool-composition loop when it appears
// anywhere in the model's output, case-insensitively.
const finalAnswerPhrase = "final answer"

// noAnswerFallback is the result when the loop stops through its error path
// before any answer was accumulated.
const noAnswerFallback = "Unable to process query"

// runReAct is the tool-composition loop. Each iteration sends the
// accumulated conversation to the model, records the raw reply as a thought,
// and then decides: terminate (explicit "final answer" phrase, iteration cap,
// or a reply naming no tool), or execute the first registered tool the reply
// names and feed the observation back into the conversation.
func (e *Engine) runReAct(ctx context.Context, query string, run *runState) (answer string, iterations int, errText string, err error) {
	run.emit(model.StepThought, `Processing query: "`+query+`"`)

	systemPrompt := "You are an advanced ReAct agent with access to multiple tools.\n\n" +
		"Available tools:\n" + e.registry.DescribeAll() + "\n\n" +
		`Follow the ReAct pattern:
1. Thought: Analyze what you need
2. Action: Choose and use a tool
3. Observation: Process the result
4. Repeat or provide final answer

Be strategic about tool selection. Combine tools when needed.`

	messages := []llm.Message{
		llm.System(systemPrompt),
		llm.User(query),
	}

	for iterations < e.maxIter {
		iterations++

		reply, cerr := e.completer.Complete(ctx, messages)
		if ctx.Err() != nil {
			return "", iterations, "", ctx.Err()
		}
		if cerr != nil {
			run.emit(model.StepThought, "Error: "+cerr.Error())
			errText = cerr.Error()
			break
		}

		run.emit(model.StepThought, reply)

		// Termination checks, in order: explicit phrase, iteration cap.
		if strings.Contains(strings.ToLower(reply), finalAnswerPhrase) || iterations >= e.maxIter {
			answer = reply
			run.emit(model.StepResult, answer)
			return answer, iterations, "", nil
		}

		action, ok := parseIntendedAction(reply, e.registry.Names(), query)
		if !ok {
			// No tool named: the reply is the answer. Implicit termination,
			// distinct from the explicit phrase above.
			answer = reply
			run.emit(model.StepResult, answer)
			return answer, iterations, "", nil
		}

		run.emit(model.StepAction, "Using tool: "+action.Tool)
		tool, _ := e.registry.Resolve(action.Tool)
		observation := tool.Execute(action.Args)
		run.emit(model.StepObservation, observation)

		messages = append(messages,
			llm.User(reply),
			llm.User("Tool result:\n"+observation+"\n\nContinue your analysis."),
		)
	}

	// Error path only: every success path returns inside the loop. The run
	// still terminates with a result step.
	if answer == "" {
		answer = noAnswerFallback
	}
	run.emit(model.StepResult, answer)
	return answer, iterations, errText, nil
}
