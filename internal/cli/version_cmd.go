// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"
)

// VersionData is the JSON payload of the version command.
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

func newVersionCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data := VersionData{
				Version:   Version,
				GitCommit: GitCommit,
				BuildDate: BuildDate,
				GoVersion: runtime.Version(),
				Platform:  runtime.GOOS + "/" + runtime.GOARCH,
			}
			return newPrinter(cmd, opts).Result(data, func(w io.Writer) {
				fmt.Fprintln(w, TitleStyle.Render("ragdesk "+data.Version))
				fmt.Fprintln(w, RenderField("Commit", data.GitCommit))
				fmt.Fprintln(w, RenderField("Built", data.BuildDate))
				fmt.Fprintln(w, RenderField("Go", data.GoVersion))
				fmt.Fprintln(w, RenderField("Platform", data.Platform))
			})
		},
	}
}
