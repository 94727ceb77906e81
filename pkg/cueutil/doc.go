// SPDX-License-Identifier: MPL-2.0

// Package cueutil provides shared CUE validation utilities.
//
// Two flows are supported. ParseAndDecode compiles a CUE document, unifies it
// with a definition from an embedded schema and decodes the result into a Go
// struct; the application config uses it. ValidateValue encodes an already
// loaded Go value and checks it against a schema definition; the loader uses
// it to check environment-change shapes of YAML configuration trees.
//
// # Usage
//
//	//go:embed config_schema.cue
//	var schemaBytes []byte
//
//	result, err := cueutil.ParseAndDecode[Config](
//	    schemaBytes,
//	    userFileBytes,
//	    "#Config",
//	    cueutil.WithFilename("config.cue"),
//	)
//	if err != nil {
//	    return nil, err // error carries the CUE path of the offending field
//	}
//	return result.Value, nil
package cueutil
