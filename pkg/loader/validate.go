// SPDX-License-Identifier: MPL-2.0

package loader

import (
	_ "embed"

	"github.com/esm-tools/esmenv/pkg/cueutil"
	"github.com/esm-tools/esmenv/pkg/tree"
)

//go:embed environment_schema.cue
var environmentSchema []byte

// Validate checks the shapes of the environment keys of every section of a
// composite configuration: module_actions must be a list or a single action,
// export_vars a mapping or a list of NAME=VALUE tokens.
func Validate(composite *tree.Mapping, filename string) error {
	return cueutil.ValidateValue(environmentSchema, tree.ToGo(composite), "#Composite", cueutil.WithFilename(filename))
}
