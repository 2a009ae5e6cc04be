/*
   Copyright 2025 The DIRPX Authors.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	asink "dirpx.dev/dlog/apis/sink"
	"dirpx.dev/dlog/apis/condition"
	"dirpx.dev/dlog/apis/severity"
	"dirpx.dev/dlog/runtime/channel"
)

// discardWriter drops every write; used by "sink install" for
// interactive testing of routing rules without a real backing device.
type discardWriter struct{ sinkID string }

func (d discardWriter) Write(ctx context.Context, format string, data []byte) ([]byte, error) {
	return data, nil
}
func (d discardWriter) GetWritee() any { return d.sinkID }

func parseIfExistsFlag(s string) (channel.IfExists, error) {
	switch s {
	case "", "error":
		return channel.IfExistsError, nil
	case "ignore":
		return channel.IfExistsIgnore, nil
	case "supersede":
		return channel.IfExistsSupersede, nil
	default:
		return 0, fmt.Errorf("unknown --if-exists %q", s)
	}
}

// newRootCommand builds the dlogctl command tree over mgr. Embedders
// wanting an in-process admin surface construct their own long-lived
// Manager and pass it here instead of building a fresh one per run.
func newRootCommand(mgr *channel.Manager) *cobra.Command {
	root := &cobra.Command{
		Use:           "dlogctl",
		Short:         "Administer dlog channels and sinks",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newChannelCommand(mgr), newSinkCommand(mgr))
	return root
}

func newChannelCommand(mgr *channel.Manager) *cobra.Command {
	cmd := &cobra.Command{Use: "channel", Short: "Manage channels"}

	create := &cobra.Command{
		Use:   "create <channel-id>",
		Short: "Create a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mgr.Create(args[0])
		},
	}

	del := &cobra.Command{
		Use:   "delete <channel-id>",
		Short: "Delete a channel, releasing every installed sink",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mgr.Delete(args[0])
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List every channel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, id := range mgr.List() {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}

	cmd.AddCommand(create, del, list)
	return cmd
}

func newSinkCommand(mgr *channel.Manager) *cobra.Command {
	cmd := &cobra.Command{Use: "sink", Short: "Manage sinks within a channel"}

	var sev string
	var app, mod string
	var ifExists string

	install := &cobra.Command{
		Use:   "install <channel-id> <sink-id>",
		Short: "Install a discard sink with a severity-threshold condition",
		Long: "Install installs a sink that writes to a discard writer. It exists " +
			"for interactive testing of routing rules; production sinks are " +
			"installed declaratively through runtime/config.Apply.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := severity.Parse(sev)
			if err != nil {
				return err
			}
			c := condition.AtLeast(s)
			if app != "" {
				c = c.WithApplication(app)
			}
			if mod != "" {
				c = c.WithModule(mod)
			}
			ie, err := parseIfExistsFlag(ifExists)
			if err != nil {
				return err
			}
			h := asink.Handle{ID: args[1], Condition: c, Start: asink.StartSpec{Writer: discardWriter{args[1]}}}
			_, err = mgr.InstallSink(args[0], h, channel.InstallOptions{IfExists: ie})
			return err
		},
	}
	install.Flags().StringVar(&sev, "severity", "", "threshold severity (required)")
	install.Flags().StringVar(&app, "application", "", "application narrowing (optional)")
	install.Flags().StringVar(&mod, "module", "", "module narrowing (optional)")
	install.Flags().StringVar(&ifExists, "if-exists", "error", "error|ignore|supersede")
	_ = install.MarkFlagRequired("severity")

	uninstall := &cobra.Command{
		Use:   "uninstall <channel-id> <sink-id>",
		Short: "Uninstall a sink",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := mgr.UninstallSink(args[0], args[1])
			return err
		},
	}

	find := &cobra.Command{
		Use:   "find <channel-id> <sink-id>",
		Short: "Show a sink's current handle",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := mgr.FindSink(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", h.ID, condition.Normalise(h.Condition))
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list <channel-id>",
		Short: "List every sink installed on a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sinks, err := mgr.ListSinks(args[0])
			if err != nil {
				return err
			}
			for _, h := range sinks {
				fmt.Fprintln(cmd.OutOrStdout(), h.ID)
			}
			return nil
		},
	}

	setCondition := &cobra.Command{
		Use:   "set-condition <channel-id> <sink-id>",
		Short: "Replace a sink's condition with a single severity threshold",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := severity.Parse(sev)
			if err != nil {
				return err
			}
			c := condition.AtLeast(s)
			if app != "" {
				c = c.WithApplication(app)
			}
			if mod != "" {
				c = c.WithModule(mod)
			}
			_, err = mgr.SetCondition(args[0], args[1], c)
			return err
		},
	}
	setCondition.Flags().StringVar(&sev, "severity", "", "threshold severity (required)")
	setCondition.Flags().StringVar(&app, "application", "", "application narrowing (optional)")
	setCondition.Flags().StringVar(&mod, "module", "", "module narrowing (optional)")
	_ = setCondition.MarkFlagRequired("severity")

	cmd.AddCommand(install, uninstall, find, list, setCondition)
	return cmd
}
