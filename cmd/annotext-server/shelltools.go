// Shell-backed adapters wiring the diagnostics.Linter and
// compileexplorer.Compiler interfaces to an external command configured at
// startup, mirroring how the original project shelled out to a fixed
// clang/clang-format/objdump pipeline, but generalized to any command that
// reads source on stdin.
package main

import (
	"bytes"
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/annotext/annotext/internal/collaborators/compileexplorer"
	"github.com/annotext/annotext/internal/collaborators/diagnostics"
	"github.com/annotext/annotext/internal/crdt"
)

const shellToolTimeout = 10 * time.Second

func runShell(command, stdin string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), shellToolTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Stdin = strings.NewReader(stdin)
	var out bytes.Buffer
	cmd.Stdout = &out
	// Linters commonly write diagnostics to stdout or stderr depending on
	// tool; a real deployment would pin this per configured command.
	if err := cmd.Run(); err != nil {
		if _, ok := err.(*exec.ExitError); !ok {
			return "", err
		}
	}
	return out.String(), nil
}

// shellLinter runs command with the buffer's text on stdin and parses
// "line:col: severity: message" lines out of its output, the common shape
// shared by gcc, clang and golangci-lint's text formatters.
type shellLinter struct {
	command string
}

func (l shellLinter) Lint(filename, text string) ([]diagnostics.Diagnostic, error) {
	out, err := runShell(l.command, text)
	if err != nil {
		return nil, err
	}
	offsets := lineOffsets(text)

	var diags []diagnostics.Diagnostic
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ":", 4)
		if len(parts) < 4 {
			continue
		}
		lineNo, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
		colNo, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err1 != nil || err2 != nil {
			continue
		}
		offset := offsetAt(offsets, lineNo, colNo)
		diags = append(diags, diagnostics.Diagnostic{
			Severity: severityFromWord(strings.TrimSpace(parts[2])),
			Message:  strings.TrimSpace(parts[3]),
			Begin:    offset,
			End:      offset,
		})
	}
	return diags, nil
}

func severityFromWord(word string) crdt.Severity {
	switch strings.ToLower(word) {
	case "error", "fatal":
		return crdt.SeverityError
	case "warning", "warn":
		return crdt.SeverityWarning
	default:
		return crdt.SeverityNote
	}
}

// lineOffsets returns, for each line, the byte offset of its first
// character within text.
func lineOffsets(text string) []int {
	offsets := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			offsets = append(offsets, i+1)
		}
	}
	return offsets
}

// offsetAt converts a 1-based line/column pair into a byte offset,
// clamping out-of-range input to the nearest valid line.
func offsetAt(offsets []int, line, col int) int {
	idx := line - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(offsets) {
		idx = len(offsets) - 1
	}
	offset := offsets[idx] + (col - 1)
	if offset < offsets[idx] {
		offset = offsets[idx]
	}
	return offset
}

// shellCompiler runs command with the buffer's text on stdin and treats its
// entire stdout as one undifferentiated assembly listing. It parses no
// line markers and returns a nil line map, so compileexplorer publishes
// the side buffer with no per-line BufferRef marks into it.
type shellCompiler struct {
	command string
}

func (c shellCompiler) Compile(filename, text string) (string, map[int][]int, error) {
	out, err := runShell(c.command, text)
	if err != nil {
		return "", nil, err
	}
	return out, nil, nil
}

var _ compileexplorer.Compiler = shellCompiler{}
var _ diagnostics.Linter = shellLinter{}
