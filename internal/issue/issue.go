// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
)

type Id int

const (
	ConfigLoadFailedId Id = iota + 1
	MachineNotDetectedId
	MachinesDirNotSetId
	ConfigMissingId
	SetupFileNotFoundId
	MalformedInputId
	ChooseBlockFailedId
	VariableCycleId
	InvalidRunModeId
	SchemaValidationFailedId
	ScriptWriteFailedId
	ScriptSyntaxErrorId
	PermissionDeniedId
)

type MarkdownMsg string

type HttpLink string

type Renderer interface {
	Render(in string, stylePath string) (string, error)
}

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink  // must never be empty
	extLinks []HttpLink  // external links that might be useful for the user
}

const (
	docsRoot        HttpLink = "https://esm-tools.readthedocs.io/en/latest/"
	docsEnvironment HttpLink = docsRoot + "esm_environment.html"
	docsYAML        HttpLink = docsRoot + "yaml.html"
	docsChoose      HttpLink = docsRoot + "yaml.html#switches-choose"
)

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render renders the issue with glamour. stylePath is a glamour style name
// or path, e.g. "dark" or "notty".
func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		md.WriteString("\n\n## See also\n")
		for _, link := range slices.Concat(i.docLinks, i.extLinks) {
			md.WriteString("- <" + string(link) + ">\n")
		}
	}
	return render(md.String(), stylePath)
}

var (
	render = glamour.Render

	configLoadFailedIssue = &Issue{
		id:       ConfigLoadFailedId,
		docLinks: []HttpLink{docsYAML},
		mdMsg: `
# Failed to load a configuration file!

One of the YAML files making up the composite configuration could not be read.

## Common issues:
- The path given to ` + "`--machine`, `--general` or `--model-file`" + ` does not exist
- The file is not valid YAML (tabs for indentation, unbalanced quotes)
- The top level of the file is a list or a scalar instead of a mapping

## Things you can try:
- Check the error message above for the line and column
- Validate the file on its own:
~~~
$ esmenv validate --machine machine.yaml
~~~`,
	}

	machineNotDetectedIssue = &Issue{
		id:       MachineNotDetectedId,
		docLinks: []HttpLink{docsEnvironment},
		mdMsg: `
# Could not detect the machine!

The hostname did not match any ` + "`login_nodes` or `compute_nodes`" + ` pattern in
` + "`all_machines.yaml`" + `.

## Things you can try:
- Show what was detected:
~~~
$ esmenv machine
~~~

- Name the machine file explicitly:
~~~
$ esmenv env --machine /path/to/machines/levante.yaml
~~~

- Add a pattern for this host to ` + "`all_machines.yaml`",
	}

	machinesDirNotSetIssue = &Issue{
		id:       MachinesDirNotSetId,
		docLinks: []HttpLink{docsEnvironment},
		mdMsg: `
# No machines directory configured!

Machine detection needs a directory containing ` + "`all_machines.yaml`" + `.

## Things you can try:
- Pass it on the command line:
~~~
$ esmenv env --machines-dir /path/to/configs/machines
~~~

- Set it once in your config file:
~~~yaml
machines_dir: /path/to/configs/machines
~~~

- Or use the environment variable ` + "`ESMENV_MACHINES_DIR`",
	}

	configMissingIssue = &Issue{
		id:       ConfigMissingId,
		docLinks: []HttpLink{docsEnvironment},
		mdMsg: `
# A required configuration section is missing!

The composite configuration must contain a ` + "`computer`" + ` section, and every model
named with ` + "`--model`" + ` or listed in ` + "`general.models`" + ` must be configured.

## Things you can try:
- Dump the composite to see what was loaded:
~~~
$ esmenv dump
~~~

- Check the spelling of the model name`,
	}

	setupFileNotFoundIssue = &Issue{
		id:       SetupFileNotFoundId,
		docLinks: []HttpLink{docsEnvironment},
		mdMsg: `
# Setup file not found!

` + "`general.coupled_setup`" + ` is enabled, but no file for the setup was found below
the function path. Files are looked up as ` + "`<setup>/<setup>-<version>.yaml`" + ` and
` + "`<setup>/<setup>.yaml`" + `.

## Things you can try:
- Point esmenv at your esm-tools configs:
~~~
$ esmenv env --function-path /path/to/configs
~~~

- Check ` + "`general.setup_name` and `general.version`",
	}

	malformedInputIssue = &Issue{
		id:       MalformedInputId,
		docLinks: []HttpLink{docsEnvironment},
		mdMsg: `
# Malformed environment changes!

An ` + "`export_vars` or `add_export_vars`" + ` entry has a shape that cannot be merged.

## Expected shapes:
~~~yaml
environment_changes:
  module_actions:
    - load gcc
  export_vars:
    NETCDF_ROOT: /sw/netcdf
  add_export_vars:
    - "PATH=$NETCDF_ROOT/bin:$PATH"
~~~`,
	}

	chooseBlockFailedIssue = &Issue{
		id:       ChooseBlockFailedId,
		docLinks: []HttpLink{docsChoose},
		mdMsg: `
# A choose block could not be evaluated!

Choose blocks must be mappings from selector values to branches, and their
selector must eventually resolve.

## Things you can try:
- Check that the selector key (the part after ` + "`choose_`" + `) exists
- Add a ` + "`\"*\"`" + ` branch as a fallback
- Look for choose blocks whose branches set their own selector`,
	}

	variableCycleIssue = &Issue{
		id:       VariableCycleId,
		docLinks: []HttpLink{docsYAML},
		mdMsg: `
# Variable references do not settle!

Some ` + "`${section.key}`" + ` references refer to each other in a cycle.

## Things you can try:
- Look for a value that includes itself, e.g. ` + "`PATH: ${computer.PATH}:/x`" + `
- Use ` + "`add_export_vars`" + ` to extend a value instead`,
	}

	invalidRunModeIssue = &Issue{
		id:       InvalidRunModeId,
		docLinks: []HttpLink{docsEnvironment},
		mdMsg: `
# Invalid run mode!

The run mode must be either ` + "`compiletime` or `runtime`" + `.

~~~
$ esmenv env --mode runtime
~~~`,
	}

	schemaValidationFailedIssue = &Issue{
		id:       SchemaValidationFailedId,
		docLinks: []HttpLink{docsEnvironment},
		mdMsg: `
# The configuration does not match the expected structure!

## Things you can try:
- Check the path reported above, e.g. ` + "`computer.module_actions`" + `
- ` + "`module_actions`" + ` must be a list of strings
- ` + "`export_vars`" + ` must be a mapping or a list of ` + "`NAME=value`" + ` strings`,
	}

	scriptWriteFailedIssue = &Issue{
		id:       ScriptWriteFailedId,
		docLinks: []HttpLink{docsEnvironment},
		mdMsg: `
# Failed to write the script!

## Things you can try:
- Check that the output directory exists and is writable
- Choose another directory:
~~~
$ esmenv script --dir /tmp/run compile
~~~`,
	}

	scriptSyntaxErrorIssue = &Issue{
		id:       ScriptSyntaxErrorId,
		docLinks: []HttpLink{docsEnvironment},
		extLinks: []HttpLink{"https://github.com/mvdan/sh"},
		mdMsg: `
# The rendered script is not valid bash!

A module action or exported value produced a line bash cannot parse.

## Things you can try:
- Check quoting in ` + "`export_vars`" + ` values
- Look at the rendered commands:
~~~
$ esmenv env --no-validate
~~~`,
	}

	permissionDeniedIssue = &Issue{
		id:       PermissionDeniedId,
		docLinks: []HttpLink{docsEnvironment},
		mdMsg: `
# Permission denied!

You don't have permission to read a configuration file or write a script.

## Things you can try:
- Check file and directory permissions
- Write scripts into a directory you own with ` + "`--dir`",
	}

	issues = map[Id]*Issue{
		configLoadFailedIssue.Id():       configLoadFailedIssue,
		machineNotDetectedIssue.Id():     machineNotDetectedIssue,
		machinesDirNotSetIssue.Id():      machinesDirNotSetIssue,
		configMissingIssue.Id():          configMissingIssue,
		setupFileNotFoundIssue.Id():      setupFileNotFoundIssue,
		malformedInputIssue.Id():         malformedInputIssue,
		chooseBlockFailedIssue.Id():      chooseBlockFailedIssue,
		variableCycleIssue.Id():          variableCycleIssue,
		invalidRunModeIssue.Id():         invalidRunModeIssue,
		schemaValidationFailedIssue.Id(): schemaValidationFailedIssue,
		scriptWriteFailedIssue.Id():      scriptWriteFailedIssue,
		scriptSyntaxErrorIssue.Id():      scriptSyntaxErrorIssue,
		permissionDeniedIssue.Id():       permissionDeniedIssue,
	}
)

// Values returns every issue ordered by Id.
func Values() []*Issue {
	return slices.SortedFunc(maps.Values(issues), func(a, b *Issue) int {
		return cmp.Compare(a.id, b.id)
	})
}

func Get(id Id) *Issue {
	return issues[id]
}
