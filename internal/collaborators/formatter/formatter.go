// Package formatter runs an external source formatter (clang-format,
// gofmt, ...) against a buffer's current text and folds its output
// back in as a minimal set of CRDT edits. Grounded on
// clang_format_collaborator.cc/.h: a SyncCollaborator gated on
// fully_loaded, latched against re-running on content it already
// formatted. The original diffs against an XML replacement list from
// clang-format itself; since the formatter here is any shell command,
// the diff is computed locally instead (common-prefix/common-suffix
// trim around the one changed span, same shape as diff-match-patch's
// cheap path).
package formatter

import (
	"bytes"
	"os/exec"
	"strings"
	"time"

	"github.com/annotext/annotext/internal/collab"
	"github.com/annotext/annotext/internal/crdt"
	"github.com/annotext/annotext/internal/ids"
	"github.com/annotext/annotext/internal/latch"
)

// Formatter is a SyncCollaborator that shells out to command (run via
// "sh -c", receiving the document text on stdin and producing replacement
// text on stdout) whenever the buffer settles on new, fully-loaded content.
type Formatter struct {
	*collab.Base

	command string
	latch   *latch.ContentLatch
	runner  func(command, input string) (string, error)
}

// New returns a Formatter that invokes command through the shell.
func New(command string) *Formatter {
	return &Formatter{
		Base:    collab.NewBase("formatter", 100*time.Millisecond, 2*time.Second),
		command: command,
		latch:   latch.New(false),
		runner:  runShell,
	}
}

func runShell(command, input string) (string, error) {
	cmd := exec.Command("sh", "-c", command)
	cmd.Stdin = strings.NewReader(input)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", err
	}
	return out.String(), nil
}

// Edit runs the formatter once per distinct fully-loaded content and
// emits the minimal delete/insert pair turning the old text into the
// formatter's output.
func (f *Formatter) Edit(n collab.EditNotification) collab.EditResponse {
	var r collab.EditResponse
	if !n.FullyLoaded || f.command == "" {
		return r
	}
	if !f.latch.IsNewContent(n) {
		return r
	}

	text := n.Content.RenderAll()
	formatted, err := f.runner(f.command, text)
	if err != nil || formatted == text {
		return r
	}

	diffIntoEdits(&r.ContentUpdates, n.Content, f.Site(), formatted)
	return r
}

// diffIntoEdits appends the delete/insert commands needed to turn
// content's rendered text into formatted, anchoring the edit on the
// common prefix/suffix so an unrelated trailing or leading region of
// the file is left untouched (and thus doesn't churn other
// collaborators' unrelated annotations).
func diffIntoEdits(cmds *crdt.CommandSet, content crdt.AnnotatedString, site *ids.Site, formatted string) {
	oldIDs, oldBytes := visibleRun(content)
	newBytes := []byte(formatted)

	prefix := commonPrefixLen(oldBytes, newBytes)
	suffix := commonSuffixLen(oldBytes[prefix:], newBytes[prefix:])

	delBeg, delEnd := prefix, len(oldBytes)-suffix
	insBeg, insEnd := prefix, len(newBytes)-suffix

	after := ids.Begin
	if delBeg > 0 {
		after = oldIDs[delBeg-1]
	}
	for i := delBeg; i < delEnd; i++ {
		crdt.MakeDelete(cmds, oldIDs[i])
	}
	if insEnd > insBeg {
		content.MakeInsert(cmds, site, newBytes[insBeg:insEnd], after)
	}
}

func visibleRun(s crdt.AnnotatedString) ([]ids.ID, []byte) {
	var runIDs []ids.ID
	var runBytes []byte
	for id := s.Next(ids.Begin); id != ids.End; id = s.Next(id) {
		if ch, visible, _ := s.CharAt(id); visible {
			runIDs = append(runIDs, id)
			runBytes = append(runBytes, ch)
		}
	}
	return runIDs, runBytes
}

func commonPrefixLen(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

func commonSuffixLen(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[len(a)-1-i] == b[len(b)-1-i] {
		i++
	}
	return i
}
