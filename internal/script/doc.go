// SPDX-License-Identifier: MPL-2.0

// Package script writes rendered environment commands to shell scripts and
// checks them without a real shell: Validate parses them as bash and Preview
// runs them in the mvdan.cc/sh virtual interpreter with module calls and
// sourced files stubbed out.
package script
