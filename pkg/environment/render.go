// SPDX-License-Identifier: MPL-2.0

package environment

import (
	"strconv"
	"strings"

	"mvdan.cc/sh/v3/syntax"

	"github.com/esm-tools/esmenv/pkg/codec"
	"github.com/esm-tools/esmenv/pkg/tree"
)

// Render turns env into shell statements: one "module <action>" per module
// action ("source ..." actions verbatim), a blank separator line, then one
// export per export variable in insertion order.
//
// Scalar export values are written verbatim so $VAR references and quoting
// written in the configuration survive. Mapping and sequence values are
// written as flow-style YAML, shell-quoted. There is never whitespace
// around "=".
func Render(env MergedEnvironment) []string {
	actions := env.ModuleActions()
	vars := env.ExportVars()

	out := make([]string, 0, len(actions)+1+vars.Len())
	for _, action := range actions {
		out = append(out, moduleCommand(action))
	}
	out = append(out, "")
	for key, value := range vars.All() {
		out = append(out, exportCommand(key, value))
	}
	return out
}

func moduleCommand(action string) string {
	if strings.HasPrefix(action, "source") {
		return action
	}
	return "module " + action
}

func exportCommand(key string, value any) string {
	entry := codec.Decode(key, value)
	if entry.Kind == codec.EntryList {
		if s, ok := tree.Scalar(value); ok && s != "" {
			return "export " + s
		}
		return "export " + entry.Name
	}

	switch value.(type) {
	case *tree.Mapping, []any:
		return "export " + entry.Name + "=" + quoteStructured(value)
	}
	s, _ := tree.Scalar(value)
	return "export " + entry.Name + "=" + s
}

func quoteStructured(v any) string {
	flow, err := tree.FlowString(v)
	if err != nil {
		return "''"
	}
	quoted, err := syntax.Quote(flow, syntax.LangBash)
	if err != nil {
		return strconv.Quote(flow)
	}
	return quoted
}
