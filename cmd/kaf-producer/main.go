// Copyright 2026 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"os"

	"github.com/pvsune/redpanda/pkg/errors"
	"github.com/spf13/cobra"
)

const (
	exitCodeExecuteFailed = 1
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		if !errors.IsCliUnprintableError(err) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(exitCodeExecuteFailed)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "kaf-producer",
		Short:         "Drive the kaf CLI on test nodes to produce records into a Kafka API cluster",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(newRunCommand())
	return rootCmd
}

func newRunCommand() *cobra.Command {
	o := newOptions()
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the producer until it finishes, the duration elapses or it is interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := o.complete(cmd)
			if err != nil {
				return err
			}
			return o.run(cmd.Context(), cfg)
		},
	}
	o.addFlags(cmd)
	return cmd
}
