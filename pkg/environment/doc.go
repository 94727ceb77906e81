// SPDX-License-Identifier: MPL-2.0

// Package environment resolves the shell environment of a compute host and a
// set of models into ordered shell statements.
//
// Resolution starts from the machine layer (composite key "computer"), applies
// the general layer of an active coupled setup, then each model layer in
// composite order. Within a layer, the run-mode specific changes
// (compiletime_environment_changes or runtime_environment_changes) win over
// environment_changes, add_module_actions and add_export_vars append to the
// accumulated environment, and every other key overwrites it.
//
// The result is a MergedEnvironment value; Render turns it into "module ..."
// and "export ..." statements.
package environment
