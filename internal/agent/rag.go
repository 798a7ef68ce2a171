package agent

import (
	"context"

	"github.com/ashita-ai/kotae/internal/llm"
	"github.com/ashita-ai/kotae/internal/model"
	"github.com/ashita-ai/kotae/internal/retrieval"
)

const baselineSystemPrompt = `You are a helpful assistant that answers questions based on the provided documents.

Your task:
1. Read the retrieved documents carefully
2. Find information relevant to the user's question
3. Provide a clear, accurate answer based ONLY on the information in the documents
4. If the documents don't contain the answer, say so clearly

Be concise and direct in your answer.`

// emptyAnswerFallback replaces an empty model reply in the baseline loop.
const emptyAnswerFallback = "Unable to generate a complete answer. Please try again."

// runBaseline is the single-shot loop: one fixed retrieval, one LLM call.
// The step order is fixed and observable: thought, action, observation,
// action, thought, result (the two trailing steps become thought+result on
// the error path as well).
func (e *Engine) runBaseline(ctx context.Context, query string, run *runState) (answer, errText string, err error) {
	run.emit(model.StepThought, `Analyzing query: "`+query+`"`)

	run.emit(model.StepAction, `Retrieving documents related to: "`+query+`"`)
	excerpts := e.scorer.ScoreAndSelect(query, e.store.Snapshot(), retrieval.DefaultTopK)
	block := retrieval.RenderBlock(excerpts)
	run.emit(model.StepObservation, "Retrieved documents:\n"+block)

	userPrompt := "Question: " + query + "\n\nRetrieved Documents:\n" + block +
		"\n\nBased on the documents above, please answer the question. If the documents don't contain enough information to answer the question, say so clearly."

	run.emit(model.StepAction, "Analyzing documents and formulating answer...")
	reply, cerr := e.completer.Complete(ctx, []llm.Message{
		llm.System(baselineSystemPrompt),
		llm.User(userPrompt),
	})
	if ctx.Err() != nil {
		return "", "", ctx.Err()
	}
	if cerr != nil {
		run.emit(model.StepThought, "Error during processing: "+cerr.Error())
		answer = "Error processing query: " + cerr.Error()
		run.emit(model.StepResult, answer)
		return answer, cerr.Error(), nil
	}

	run.emit(model.StepThought, "Analysis complete. Formulating final answer...")
	if reply == "" {
		reply = emptyAnswerFallback
	}
	run.emit(model.StepResult, reply)
	return reply, "", nil
}
