// SPDX-License-Identifier: MPL-2.0

package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/esm-tools/esmenv/pkg/tree"
)

// MachineIndexFile lists every known machine and its node name patterns.
const MachineIndexFile = "all_machines.yaml"

var nodeKinds = []string{"login_nodes", "compute_nodes"}

// Machine identifies a detected compute host.
type Machine struct {
	// Name is the machine id, e.g. "levante".
	Name string
	// ConfigPath is the machine configuration file, <machines_dir>/<name>.yaml.
	ConfigPath string
}

// DetectMachine matches hostname against the login and compute node patterns
// of all_machines.yaml. Patterns are regular expressions anchored at the start
// of the hostname; the first machine in file order wins. An empty hostname
// means the current host.
func (l *Loader) DetectMachine(hostname string) (Machine, error) {
	if l.machinesDir == "" {
		return Machine{}, ErrMachinesDirUnset
	}
	if hostname == "" {
		h, err := os.Hostname()
		if err != nil {
			return Machine{}, fmt.Errorf("determine hostname: %w", err)
		}
		hostname = h
	}

	indexPath := filepath.Join(l.machinesDir, MachineIndexFile)
	index, err := l.LoadConfig(indexPath)
	if err != nil {
		return Machine{}, err
	}

	for name, v := range index.All() {
		entry, ok := v.(*tree.Mapping)
		if !ok {
			l.logger.Debug("skipping machine without node patterns", "machine", name)
			continue
		}
		matched, err := matchesNodes(entry, hostname)
		if err != nil {
			return Machine{}, fmt.Errorf("%s: %s: %w", indexPath, name, err)
		}
		if matched {
			l.logger.Debug("machine detected", "hostname", hostname, "machine", name)
			return Machine{Name: name, ConfigPath: filepath.Join(l.machinesDir, name+".yaml")}, nil
		}
	}
	return Machine{}, &MachineNotDetectedError{Hostname: hostname, Index: indexPath}
}

func matchesNodes(entry *tree.Mapping, hostname string) (bool, error) {
	for _, kind := range nodeKinds {
		raw, _ := entry.Get(kind)
		seq, ok := tree.Sequence(raw)
		if !ok {
			return false, fmt.Errorf("%s must be a pattern or a list of patterns", kind)
		}
		patterns, ok := tree.Strings(seq)
		if !ok {
			return false, fmt.Errorf("%s must be a pattern or a list of patterns", kind)
		}
		for _, p := range patterns {
			if p == "" {
				continue
			}
			re, err := regexp.Compile("^(?:" + p + ")")
			if err != nil {
				return false, fmt.Errorf("%s: %w", kind, err)
			}
			if re.MatchString(hostname) {
				return true, nil
			}
		}
	}
	return false, nil
}
