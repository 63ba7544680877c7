// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strand Contributors

package main

import (
	"fmt"
	"os"

	stranderr "github.com/strand-ai/strand/pkg/errors"
)

func main() {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		if code := stranderr.CodeOf(err); code != "" {
			fmt.Fprintf(os.Stderr, "error: %v (%s)\n", err, code)
		} else {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}
