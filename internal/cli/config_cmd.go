// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/jeranaias/ragdesk-tui/internal/auth"
	"github.com/jeranaias/ragdesk-tui/internal/config"
)

func newConfigCmd(opts *options, e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show and change the configuration",
		Long: `Config reads and writes ~/.ragdesk/config.toml (or the file given with
--config). Keys use dot notation, for example api.base_url or ui.theme.
Environment variables and .env overrides are applied on top of the file.`,
	}
	cmd.AddCommand(
		newConfigShowCmd(opts, e),
		newConfigGetCmd(opts, e),
		newConfigSetCmd(opts, e),
		newConfigKeysCmd(opts),
		newConfigPathCmd(opts, e),
	)
	return cmd
}

// configFile returns the file config set writes to.
func configFile(opts *options) string {
	if opts.ConfigPath != "" {
		return opts.ConfigPath
	}
	if _, err := os.Stat(config.ConfigPathTOML()); err != nil {
		if _, err := os.Stat(config.ConfigPathJSON()); err == nil {
			return config.ConfigPathJSON()
		}
	}
	return config.ConfigPathTOML()
}

func newConfigShowCmd(opts *options, e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := e.loadConfig()
			if err != nil {
				return err
			}
			return newPrinter(cmd, opts).Result(cfg, func(w io.Writer) {
				if err := toml.NewEncoder(w).Encode(cfg); err != nil {
					fmt.Fprintln(w, cfg.String())
				}
			})
		},
	}
}

func newConfigGetCmd(opts *options, e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print one configuration value",
		Example: `  ragdesk config get api.base_url
  ragdesk config get upload.allowed_extensions`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := e.loadConfig()
			if err != nil {
				return err
			}
			value, err := cfg.Get(args[0])
			if err != nil {
				return &UsageError{Err: err}
			}
			data := map[string]any{"key": args[0], "value": value}
			return newPrinter(cmd, opts).Result(data, func(w io.Writer) {
				if list, ok := value.([]string); ok {
					fmt.Fprintln(w, strings.Join(list, ","))
					return
				}
				fmt.Fprintln(w, value)
			})
		},
	}
}

func newConfigSetCmd(opts *options, e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one configuration value and save the file",
		Example: `  ragdesk config set api.base_url http://rag.internal:8000
  ragdesk config set ui.theme light
  ragdesk config set upload.allowed_extensions pdf,txt,md`,
		Args: exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Load without --api-url so the flag is not persisted.
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return &ConfigError{Err: err}
			}
			key, value := args[0], args[1]
			if err := cfg.Set(key, value); err != nil {
				return &UsageError{Err: err}
			}
			cfg.SetDefaults()
			if err := cfg.Validate(); err != nil {
				return &UsageError{Err: err}
			}
			path := configFile(opts)
			if err := config.Save(cfg, path); err != nil {
				return &ConfigError{Err: err}
			}
			stored, _ := cfg.Get(key)
			data := map[string]any{"key": key, "value": stored, "path": path}
			return newPrinter(cmd, opts).Result(data, func(w io.Writer) {
				fmt.Fprintln(w, SuccessStyle.Render(fmt.Sprintf("Set %s = %v", key, stored)))
				fmt.Fprintln(w, DimStyle.Render("Saved to "+path))
			})
		},
	}
}

func newConfigKeysCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List every configuration key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			keys := config.Keys()
			return newPrinter(cmd, opts).Result(keys, func(w io.Writer) {
				for _, k := range keys {
					fmt.Fprintln(w, k)
				}
			})
		},
	}
}

// PathsData is the JSON payload of config path.
type PathsData struct {
	Config  string `json:"config"`
	Token   string `json:"token"`
	History string `json:"history"`
	Log     string `json:"log"`
}

func newConfigPathCmd(opts *options, e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the files ragdesk reads and writes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := e.loadConfig()
			if err != nil {
				return err
			}
			data := PathsData{
				Config:  configFile(opts),
				Token:   auth.NewFileTokenStore("").Path(),
				History: cfg.HistoryPath(),
				Log:     cfg.LogPath(),
			}
			return newPrinter(cmd, opts).Result(data, func(w io.Writer) {
				fmt.Fprintln(w, RenderField("Config", data.Config))
				fmt.Fprintln(w, RenderField("Admin token", data.Token))
				fmt.Fprintln(w, RenderField("History", data.History))
				fmt.Fprintln(w, RenderField("Log", data.Log))
			})
		},
	}
}
