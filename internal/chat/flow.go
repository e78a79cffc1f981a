package chat

import (
	"context"
	"sync"

	"github.com/firebase/genkit/go/core"
	"github.com/firebase/genkit/go/genkit"

	"github.com/teamcheckmate/chaekcheck/internal/config"
)

// Input is the flow request payload.
type Input struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// Output is the flow response payload. GenerationTime is seconds of
// wall-clock time for the whole pipeline.
type Output struct {
	Answer         string     `json:"answer"`
	Sources        []Citation `json:"sources"`
	GenerationTime float64    `json:"generation_time"`
	SessionID      string     `json:"session_id"`
}

// Genkit panics on duplicate flow registration, so the flow is a process-wide
// singleton guarded by sync.Once.
var (
	flowOnce     sync.Once
	flowInstance *core.Flow[Input, Output, struct{}]
)

// NewFlow registers (once) and returns the chat flow wrapping agent.
// Later calls return the first registration regardless of arguments.
func NewFlow(g *genkit.Genkit, agent *Agent) *core.Flow[Input, Output, struct{}] {
	flowOnce.Do(func() {
		flowInstance = genkit.DefineFlow(g, "chaekcheckChat",
			func(ctx context.Context, in Input) (Output, error) {
				sessionID := in.SessionID
				if sessionID == "" {
					sessionID = config.DefaultSessionID
				}

				answer, err := agent.Ask(ctx, sessionID, in.Message)
				if err != nil {
					return Output{}, err
				}

				return Output{
					Answer:         answer.Text,
					Sources:        answer.Citations,
					GenerationTime: answer.Elapsed.Seconds(),
					SessionID:      sessionID,
				}, nil
			})
	})
	return flowInstance
}

// ResetFlowForTesting clears the singleton so tests can register fresh flows
// against isolated Genkit instances. Never call this in production code.
func ResetFlowForTesting() {
	flowOnce = sync.Once{}
	flowInstance = nil
}
