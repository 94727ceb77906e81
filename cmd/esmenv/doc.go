// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the esmenv CLI.
//
// The commands load a composite configuration (machine, optional general
// file, model files), resolve it for a run mode with pkg/environment and
// either print the rendered shell statements, write them to scripts, dump the
// merged tree or check it.
package cmd
