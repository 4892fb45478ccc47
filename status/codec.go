package status

import (
	"fmt"
	"io"
	"strings"
)

// ExitPrefix marks a line in child output that carries a self-reported status.
// The remainder of the line is the Status in its String form.
const ExitPrefix = "STATUS:"

// Encode renders s as a self-report line without the trailing newline.
func Encode(s Status) string {
	return ExitPrefix + s.String()
}

// ParseLine decodes a self-report line. It returns false when the line does
// not start with ExitPrefix or its payload is malformed.
func ParseLine(line string) (Status, bool) {
	line = strings.TrimRight(line, "\r\n")
	rest, ok := strings.CutPrefix(line, ExitPrefix)
	if !ok {
		return Status{}, false
	}
	return Parse(rest)
}

// Parse decodes "<kind> <reason>". Kind words are matched case-insensitively
// and the trailing period is optional, so "Passed. ok", "passed ok" and
// "NOT RUN" all decode. Anything else is reported as malformed.
func Parse(payload string) (Status, bool) {
	s := strings.TrimSpace(payload)
	lower := strings.ToLower(s)

	for _, k := range Kinds() {
		word := strings.ToLower(strings.TrimSuffix(k.Text(), "."))
		if !strings.HasPrefix(lower, word) {
			continue
		}
		rest := s[len(word):]
		rest = strings.TrimPrefix(rest, ".")
		if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
			// "passedx" or "failed:" is not a kind word
			continue
		}
		return New(k, rest), true
	}
	return Status{}, false
}

// Report writes s to w as a self-report line. Child processes use it to hand
// a richer verdict than their exit code to the runner.
func Report(w io.Writer, s Status) error {
	_, err := fmt.Fprintln(w, Encode(s))
	return err
}
