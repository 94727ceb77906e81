// SPDX-License-Identifier: MPL-2.0

// Package loader reads esm-tools YAML configuration into ordered trees and
// prepares them for environment resolution.
//
// A Loader detects the current machine from its hostname, loads machine,
// general and model files, evaluates choose_ blocks, interpolates ${a.b}
// references, flattens add_ entries of the machine layer and locates coupled
// setup files below the function path. It satisfies the ConfigLoader
// interface consumed by package environment.
package loader
