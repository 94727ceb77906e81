// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable errors and the Markdown guides the CLI
// renders for them with glamour.
package issue
