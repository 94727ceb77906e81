// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/esm-tools/esmenv/cmd/esmenv"

func main() {
	cmd.Execute()
}
