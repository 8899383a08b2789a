package builtin

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"deepgraph/internal/llm"
	"deepgraph/internal/tool"
)

type codeExecute struct{}

// NewCodeExecute returns a tool that runs Python snippets with a timeout.
func NewCodeExecute() tool.Tool {
	return &codeExecute{}
}

func (t *codeExecute) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        "code_execute",
		Description: "Execute a Python code snippet and return its combined stdout and stderr. Useful for calculations and data transformations.",
		Parameters: llm.ParameterSchema{
			Type: "object",
			Properties: map[string]llm.Property{
				"code": {
					Type:        "string",
					Description: "Python source code to execute",
				},
				"timeout": {
					Type:        "integer",
					Description: "Timeout in seconds (default 30, max 300)",
				},
			},
			Required: []string{"code"},
		},
	}
}

func (t *codeExecute) Execute(ctx context.Context, args map[string]any) (string, error) {
	code, _ := args["code"].(string)
	if strings.TrimSpace(code) == "" {
		return "", fmt.Errorf("code parameter required")
	}

	timeout := 30
	if tv, ok := args["timeout"].(float64); ok && int(tv) > 0 {
		timeout = int(tv)
		if timeout > 300 {
			timeout = 300
		}
	}

	execCtx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(execCtx, "python3", "-c", code)
	out, err := cmd.CombinedOutput()
	elapsed := time.Since(start)

	if execCtx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("execution timed out after %ds", timeout)
	}
	if err != nil {
		return "", fmt.Errorf("execution failed: %v\n%s", err, string(out))
	}

	output := strings.TrimRight(string(out), "\n")
	if output == "" {
		output = "(no output)"
	}
	return fmt.Sprintf("%s\n\nExecution time: %s", output, elapsed.Round(time.Millisecond)), nil
}
