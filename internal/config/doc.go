// SPDX-License-Identifier: MPL-2.0

// Package config handles esmenv's own configuration using Viper with CUE as
// the file format.
//
// Configuration is loaded from config.cue in the platform config directory
// (~/.config/esmenv on Linux), validated against the embedded
// config_schema.cue and merged over the defaults. ESMENV_* environment
// variables override file values.
package config
