package script

import (
	"fmt"
	"strings"

	"cadbridge/internal/domain"
)

// bodyIndent is the indentation of statements inside the harness try
// block (two levels of four spaces).
const bodyIndent = "        "

const harnessHeader = `# Generated by cadbridge
# Auto-generated script from CAD tool calls

import adsk.core, adsk.fusion, adsk.cam, traceback


def run(context):
    ui = None
    try:
        app = adsk.core.Application.get()
        ui = app.userInterface

        design = app.activeProduct
        if not design:
            ui.messageBox('No active design', 'cadbridge')
            return

        component = design.rootComponent
        sketch = None
`

const harnessFooter = `
        if sketch and sketch.isValid:
            sketch.exitEdit()

    except:
        if ui:
            ui.messageBox('Failed:\n{}'.format(traceback.format_exc()))


def stop(context):
    pass
`

// CompiledScript is a finished, self-contained program: deduplicated
// preambles and fragment bodies in call order inside the fixed harness.
// The source text is immutable output with no on-disk contract.
type CompiledScript struct {
	Source string
	Calls  int
}

// CompilationError aggregates the first failure encountered while
// compiling a call sequence. Compilation is all-or-nothing: no partial
// script is ever produced.
type CompilationError struct {
	Index int
	Tool  string
	Err   error
}

func (e *CompilationError) Error() string {
	return fmt.Sprintf("compile tool call %d (%s): %v", e.Index+1, e.Tool, e.Err)
}

func (e *CompilationError) Unwrap() error { return e.Err }

// Compile renders a call sequence into one script. Call order is
// preserved; each required preamble is emitted exactly once, immediately
// before the first fragment that needs it. Identical input produces
// byte-identical output.
func (l *Library) Compile(calls []domain.ToolCall) (*CompiledScript, error) {
	// Render everything up front so a failure mid-sequence emits nothing.
	fragments := make([]*Fragment, len(calls))
	for i, call := range calls {
		fr, err := l.Render(call.Name, call.Arguments)
		if err != nil {
			return nil, &CompilationError{Index: i, Tool: call.Name, Err: err}
		}
		fragments[i] = fr
	}

	var sb strings.Builder
	sb.WriteString(harnessHeader)

	seen := make(map[string]bool)
	for i, fr := range fragments {
		for _, id := range fr.Preambles {
			if seen[id] {
				continue
			}
			seen[id] = true
			code, ok := l.Preamble(id)
			if !ok {
				// Install guarantees this; a miss means the library was
				// mutated behind our back.
				return nil, &CompilationError{Index: i, Tool: calls[i].Name,
					Err: fmt.Errorf("undefined preamble %q", id)}
			}
			sb.WriteString("\n")
			sb.WriteString(indent(code))
		}
		sb.WriteString("\n")
		sb.WriteString(indent(fmt.Sprintf("# Tool call %d: %s\n%s", i+1, calls[i].Name, fr.Body)))
	}

	sb.WriteString(harnessFooter)
	return &CompiledScript{Source: sb.String(), Calls: len(calls)}, nil
}

// indent prefixes every non-empty line with the harness body indent and
// guarantees a single trailing newline.
func indent(block string) string {
	lines := strings.Split(strings.TrimRight(block, "\n"), "\n")
	var sb strings.Builder
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			sb.WriteString(bodyIndent)
			sb.WriteString(line)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
