package live

import "strings"

const (
	// EndInterviewTool is the only tool the model can call
	EndInterviewTool = "end_interview"

	// DefaultEndReason is used when the model omits a usable reason
	DefaultEndReason = "Interview Complete"
)

// EndInterviewDeclaration declares end_interview(reason)
func EndInterviewDeclaration() FunctionDeclaration {
	return FunctionDeclaration{
		Name:        EndInterviewTool,
		Description: "Call this function to end the interview session when the interview is naturally complete.",
		Parameters: &Schema{
			Type: "OBJECT",
			Properties: map[string]*Schema{
				"reason": {
					Type:        "STRING",
					Description: "The reason for ending (e.g. 'Interview Complete')",
				},
			},
		},
	}
}

// endReason extracts the reason argument. A missing or malformed reason
// yields DefaultEndReason together with a ToolCallError.
func endReason(call FunctionCall) (string, error) {
	raw, ok := call.Args["reason"]
	if !ok {
		return DefaultEndReason, &ToolCallError{Name: call.Name, Reason: "missing reason"}
	}
	reason, ok := raw.(string)
	if !ok {
		return DefaultEndReason, &ToolCallError{Name: call.Name, Reason: "reason is not a string"}
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return DefaultEndReason, &ToolCallError{Name: call.Name, Reason: "empty reason"}
	}
	return reason, nil
}
