// SPDX-License-Identifier: MPL-2.0

package environment

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/esm-tools/esmenv/pkg/loader"
	"github.com/esm-tools/esmenv/pkg/tree"
)

const (
	computerKey           = "computer"
	generalKey            = "general"
	environmentChangesKey = "environment_changes"
	chooseVersionKey      = "choose_version"
	versionKey            = "version"
	moduleActionsKey      = "module_actions"
	exportVarsKey         = "export_vars"
	coupledSetupKey       = "coupled_setup"
	modelsKey             = "models"
	setupNameKey          = "setup_name"
	modelKey              = "model"
	choosePrefix          = "choose_"
	chooseComputerPrefix  = "choose_computer."
)

type (
	// ConfigLoader is the part of the configuration loader the resolver
	// depends on. *loader.Loader implements it.
	ConfigLoader interface {
		ResolveChooseBlocks(root *tree.Mapping) error
		ResolveVariables(root *tree.Mapping) error
		LocateSetupFile(name, nameVersion string) (path string, needsLoad bool, err error)
		LoadConfig(path string) (*tree.Mapping, error)
		Preloaded(name string) (*tree.Mapping, bool)
	}

	// Option configures Resolve and New.
	Option func(*options)

	options struct {
		model  string
		loader ConfigLoader
		logger *log.Logger
	}

	resolver struct {
		mode   RunMode
		loader ConfigLoader
		logger *log.Logger
	}
)

// WithModel restricts the model layers to a single model.
func WithModel(name string) Option {
	return func(o *options) { o.model = name }
}

// WithLoader sets the loader used for choose blocks, variables and setup
// files. The default is a loader.Loader without a function path.
func WithLoader(l ConfigLoader) Option {
	return func(o *options) { o.loader = l }
}

// WithLogger sets the logger for debug output.
func WithLogger(logger *log.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func newOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.New(io.Discard)
	}
	if o.loader == nil {
		o.loader = loader.New(loader.WithLogger(o.logger))
	}
	return o
}

// Resolve merges the layers of composite for mode. The composite is copied on
// entry and never modified.
func Resolve(mode RunMode, composite *tree.Mapping, opts ...Option) (MergedEnvironment, error) {
	if err := mode.Validate(); err != nil {
		return MergedEnvironment{}, err
	}
	if composite == nil {
		return MergedEnvironment{}, &ConfigMissingError{Path: computerKey, Reason: "no configuration given"}
	}

	o := newOptions(opts)
	r := &resolver{mode: mode, loader: o.loader, logger: o.logger}
	work := composite.Clone()

	machine, ok := work.Mapping(computerKey)
	if !ok {
		return MergedEnvironment{}, &ConfigMissingError{Path: computerKey, Reason: "machine configuration must be a mapping"}
	}
	env, err := seedEnvironment(machine)
	if err != nil {
		return MergedEnvironment{}, fmt.Errorf("%s: %w", computerKey, err)
	}

	if general, ok := work.Mapping(generalKey); ok && coupledSetup(general) {
		env, err = r.mergeLayer(env, generalKey, general)
		if err != nil {
			return MergedEnvironment{}, err
		}
		if err := r.restrictToSetup(work, general); err != nil {
			return MergedEnvironment{}, err
		}
	}

	names, err := layerNames(work, o.model)
	if err != nil {
		return MergedEnvironment{}, err
	}
	for _, name := range names {
		cfg, ok := work.Mapping(name)
		if !ok {
			r.logger.Debug("skipping section that is not a mapping", "section", name)
			continue
		}
		env, err = r.mergeLayer(env, name, cfg)
		if err != nil {
			return MergedEnvironment{}, err
		}
	}
	return env, nil
}

// coupledSetup reports whether the general layer takes part in resolution.
func coupledSetup(general *tree.Mapping) bool {
	v, _ := general.Get(coupledSetupKey)
	if !tree.Truthy(v) {
		return false
	}
	for _, key := range changesKeys() {
		if general.Has(key) {
			return true
		}
	}
	return false
}

func changesKeys() []string {
	return []string{
		environmentChangesKey,
		RunModeCompiletime.ChangesKey(),
		RunModeRuntime.ChangesKey(),
	}
}

func layerNames(work *tree.Mapping, model string) ([]string, error) {
	if model != "" {
		if !work.Has(model) {
			return nil, &ConfigMissingError{Path: model, Reason: "model not found in configuration"}
		}
		return []string{model}, nil
	}
	var names []string
	for _, name := range work.Keys() {
		if name != computerKey && name != generalKey {
			names = append(names, name)
		}
	}
	return names, nil
}

// restrictToSetup drops the inline environment changes of every model of the
// coupled setup and re-introduces only those the setup file defines for that
// model.
func (r *resolver) restrictToSetup(work, general *tree.Mapping) error {
	rawModels, ok := general.Get(modelsKey)
	if !ok || rawModels == nil {
		return &ConfigMissingError{Path: generalKey + "." + modelsKey, Reason: "coupled setup lists no models"}
	}
	seq, ok := tree.Sequence(rawModels)
	if !ok {
		return &MalformedInputError{Value: rawModels}
	}
	models, ok := tree.Strings(seq)
	if !ok {
		return &MalformedInputError{Value: rawModels}
	}

	setup, err := r.setupConfig(general)
	if err != nil {
		return err
	}

	reintroduced := false
	for _, model := range models {
		cfg, ok := work.Mapping(model)
		if !ok {
			return &ConfigMissingError{Path: model, Reason: "model listed in general.models is not configured"}
		}
		for _, key := range changesKeys() {
			cfg.Delete(key)
			v, found := tree.FindValueAtPath(setup, key, tree.Path{model})
			if !found {
				continue
			}
			cfg.Set(key, tree.DeepCopy(v))
			reintroduced = true
			r.logger.Debug("setup redefines model environment", "model", model, "key", key)
		}
	}
	if !reintroduced {
		return nil
	}
	return r.loader.ResolveVariables(work)
}

func (r *resolver) setupConfig(general *tree.Mapping) (*tree.Mapping, error) {
	name, _ := general.String(setupNameKey)
	if name == "" {
		name, _ = general.String(modelKey)
	}
	if name == "" {
		return nil, &ConfigMissingError{Path: generalKey + "." + setupNameKey, Reason: "coupled setup has no name"}
	}
	version, _ := general.String(versionKey)
	nameVersion := name
	if version != "" {
		nameVersion = name + "-" + version
	}

	path, needsLoad, err := r.loader.LocateSetupFile(name, nameVersion)
	if err != nil {
		return nil, &FileLookupError{Setup: name, Version: version, Err: err}
	}
	if !needsLoad {
		setup, ok := r.loader.Preloaded(path)
		if !ok {
			return nil, &FileLookupError{Setup: name, Version: version}
		}
		return setup, nil
	}
	setup, err := r.loader.LoadConfig(path)
	if err != nil {
		return nil, &FileLookupError{Setup: name, Version: version, Err: err}
	}
	r.logger.Debug("loaded setup file", "setup", name, "path", path)
	return setup, nil
}

// mergeLayer applies one layer to env and returns the new environment. cfg
// belongs to the working copy and may be modified.
//
// Plain keys of the layer overwrite first. The layer's add_ entries are
// appended after that, so a layer setting both module_actions and
// add_module_actions yields its own list followed by the additions.
func (r *resolver) mergeLayer(env MergedEnvironment, name string, cfg *tree.Mapping) (MergedEnvironment, error) {
	out := env.clone()

	changes, err := r.layerChanges(cfg)
	if err != nil {
		return MergedEnvironment{}, fmt.Errorf("%s: %w", name, err)
	}
	if changes == nil {
		r.logger.Debug("layer has no environment changes", "layer", name, "mode", r.mode)
		return out, nil
	}

	if err := collectAppends(out.root, changes); err != nil {
		return MergedEnvironment{}, fmt.Errorf("%s.%s: %w", name, environmentChangesKey, err)
	}

	for k, v := range changes.All() {
		out.root.Set(k, tree.DeepCopy(v))
	}
	if err := normalize(out.root); err != nil {
		return MergedEnvironment{}, fmt.Errorf("%s.%s: %w", name, environmentChangesKey, err)
	}

	for _, k := range out.root.Keys() {
		if strings.Contains(k, chooseComputerPrefix) {
			out.root.Rename(k, strings.Replace(k, "computer.", "", 1))
		}
	}
	if err := r.loader.ResolveChooseBlocks(out.root); err != nil {
		return MergedEnvironment{}, fmt.Errorf("%s: %w", name, err)
	}

	if err := flushAccumulators(out.root); err != nil {
		return MergedEnvironment{}, fmt.Errorf("%s: %w", name, err)
	}
	r.logger.Debug("merged layer", "layer", name, "mode", r.mode)
	return out, nil
}

// layerChanges combines environment_changes with the run-mode specific
// changes after promoting the choose_version branch matching the model
// version. It returns nil when the layer defines neither.
func (r *resolver) layerChanges(cfg *tree.Mapping) (*tree.Mapping, error) {
	base, hasBase := cfg.Get(environmentChangesKey)
	changes, ok := base.(*tree.Mapping)
	if hasBase && base != nil && !ok {
		return nil, &MalformedInputError{Value: base}
	}

	if scoped, ok := cfg.Mapping(r.mode.ChangesKey()); ok {
		promoteVersion(cfg, scoped)
		if changes == nil {
			changes = tree.NewMapping()
			cfg.Set(environmentChangesKey, changes)
		}
		changes.Update(scoped)
	}
	return changes, nil
}

func promoteVersion(cfg, scoped *tree.Mapping) {
	if branches, ok := scoped.Mapping(chooseVersionKey); ok {
		if version, ok := cfg.String(versionKey); ok {
			if branch, ok := branches.Mapping(version); ok {
				scoped.Update(branch)
			}
		}
	}
	scoped.Delete(chooseVersionKey)
}

// collectAppends moves every add_ marker of changes into the accumulators of
// root. Markers inside choose_ blocks are left for the choose evaluator.
func collectAppends(root, changes *tree.Mapping) error {
	for _, acc := range Accumulators() {
		for _, p := range tree.FindKeyOccurrences(changes, acc.MarkerKey()) {
			if p.Parent().HasSegmentPrefix(choosePrefix) {
				continue
			}
			v, ok := tree.At(changes, p)
			if !ok {
				continue
			}
			ensureTarget(root, acc)
			if err := accumulate(root, acc, v); err != nil {
				return fmt.Errorf("%s: %w", p, err)
			}
			tree.DeleteAt(changes, p)
		}
	}
	return nil
}
