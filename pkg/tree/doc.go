// SPDX-License-Identifier: MPL-2.0

// Package tree provides the order-preserving configuration tree shared by the
// loader, the resolver and the renderer.
//
// A tree value is one of:
//   - nil
//   - string (scalars keep their YAML source text, so `1.0` stays "1.0")
//   - []any (a sequence)
//   - *Mapping (an insertion-ordered mapping with string keys)
//
// Insertion order matters: exported variables are rendered in mapping order
// and models are resolved in composite order, so the standard Go map is never
// used to hold configuration content.
package tree
