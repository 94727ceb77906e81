// SPDX-License-Identifier: MPL-2.0

package script

import (
	"errors"
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// ErrSyntax is the sentinel wrapped by every SyntaxError.
var ErrSyntax = errors.New("script syntax error")

// SyntaxError reports a command that does not parse as a bash statement.
type SyntaxError struct {
	// Line is the 1-based position of the command in the script body.
	Line    int
	Command string
	Err     error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("script syntax error on line %d (%q): %v", e.Line, e.Command, e.Err)
}

// Unwrap returns both the sentinel and the parser error.
func (e *SyntaxError) Unwrap() []error {
	return []error{ErrSyntax, e.Err}
}

// Validate parses every command as bash. Commands are parsed one at a time,
// matching how they are written to the script. Every failing command is
// reported.
func Validate(commands []string) error {
	var errs []error
	for i, command := range commands {
		if strings.TrimSpace(command) == "" {
			continue
		}
		if _, err := parser().Parse(strings.NewReader(command), "script"); err != nil {
			errs = append(errs, &SyntaxError{Line: i + 1, Command: command, Err: err})
		}
	}
	return errors.Join(errs...)
}

func parser() *syntax.Parser {
	return syntax.NewParser(syntax.Variant(syntax.LangBash))
}
