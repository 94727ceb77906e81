// SPDX-License-Identifier: MPL-2.0

package loader

import (
	"os"
	"path/filepath"
)

// LocateSetupFile finds the configuration of a coupled setup. In-memory setups
// registered with WithSetup are checked first and reported with needsLoad
// false; their path is the registered name, to be fetched with Preloaded.
// Otherwise <function_path>/setups/<name>/ and <function_path>/<name>/ are
// searched for <nameVersion>.yaml, then <name>.yaml.
func (l *Loader) LocateSetupFile(name, nameVersion string) (path string, needsLoad bool, err error) {
	for _, key := range []string{nameVersion, name} {
		if _, ok := l.setups[key]; ok {
			return key, false, nil
		}
	}

	candidates := l.setupCandidates(name, nameVersion)
	for _, candidate := range candidates {
		info, statErr := os.Stat(candidate)
		if statErr == nil && !info.IsDir() {
			l.logger.Debug("setup file located", "setup", name, "path", candidate)
			return candidate, true, nil
		}
	}
	return "", false, &SetupNotFoundError{Name: name, NameVersion: nameVersion, Candidates: candidates}
}

func (l *Loader) setupCandidates(name, nameVersion string) []string {
	if l.functionPath == "" {
		return nil
	}
	dirs := []string{
		filepath.Join(l.functionPath, "setups", name),
		filepath.Join(l.functionPath, name),
	}
	files := []string{nameVersion + ".yaml", name + ".yaml"}
	if nameVersion == "" || nameVersion == name {
		files = files[1:]
	}

	var out []string
	for _, dir := range dirs {
		for _, f := range files {
			out = append(out, filepath.Join(dir, f))
		}
	}
	return out
}
