package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/arturoeanton/go-git-mirror/internal/adapter/store"
	"github.com/arturoeanton/go-git-mirror/internal/adapter/vcs"
	"github.com/arturoeanton/go-git-mirror/internal/app"
	"github.com/arturoeanton/go-git-mirror/internal/domain"
	"github.com/arturoeanton/go-git-mirror/internal/logger"
	"github.com/arturoeanton/go-git-mirror/internal/port"
	"github.com/arturoeanton/go-git-mirror/internal/service"
	"github.com/arturoeanton/go-git-mirror/pkg/config"
)

type globalOptions struct {
	configFile string
	storeRoot  string
	logLevel   string
}

// buildApp loads configuration and wires the services. The CLI never opens
// the database; audit and delivery writes go to the log on stderr.
func buildApp(opts *globalOptions, stderr io.Writer) (*app.App, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, err
	}
	if opts.storeRoot != "" {
		cfg.StoreRoot = opts.storeRoot
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	log := logger.NewTo(stderr, cfg.LogLevel, cfg.LogFormat)
	return app.NewWithStore(cfg, log, vcs.NewGitProvider(cfg.GitBinary), store.NewLogStore(log)), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newLocateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "locate <url>",
		Short: "Print the canonical identity of a repository URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, ok := domain.Locate(args[0])
			if !ok {
				return fmt.Errorf("%q: %w", args[0], port.ErrNotAGitURL)
			}
			fmt.Fprintln(cmd.OutOrStdout(), id.String())
			return nil
		},
	}
}

func newCloneCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clone <url>",
		Short: "Clone a repository into the store unless already mirrored",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			m, err := a.Mirrors.EnsureCloned(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", m.Path, m.LocalPath)
			return nil
		},
	}
}

func newUpdateCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "update <url|host/owner/name>",
		Short: "Pull the latest commits into an existing mirror",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			m, err := a.Mirrors.Update(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", m.Path, m.Head)
			return nil
		},
	}
}

func newListCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List mirrored repositories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			repos, err := a.Mirrors.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, r := range repos {
				fmt.Fprintln(cmd.OutOrStdout(), r)
			}
			return nil
		},
	}
}

func newChangesCmd(opts *globalOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "changes <url|host/owner/name> <before> <after>",
		Short: "Report line-level changes between two commits",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			report, err := a.Diffs.ChangesBetween(cmd.Context(), args[0], args[1], args[2])
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), report)
			}
			out := cmd.OutOrStdout()
			for _, fc := range report.FilesChanged {
				name := fc.FilePath
				if fc.OldPath != "" {
					name = fc.OldPath + " -> " + fc.FilePath
				}
				fmt.Fprintf(out, "%-12s +%-5d -%-5d %s\n", fc.ChangeType, fc.Additions, fc.Deletions, name)
			}
			for _, sf := range report.SkippedFiles {
				fmt.Fprintf(out, "%-12s %-14s %s (%s)\n", "skipped", "", sf.FilePath, sf.Reason)
			}
			fmt.Fprintf(out, "%d files changed, %d insertions(+), %d deletions(-)\n",
				len(report.FilesChanged), report.TotalAdditions, report.TotalDeletions)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full report as JSON")
	return cmd
}

func newNormalizeCmd() *cobra.Command {
	var platform string

	cmd := &cobra.Command{
		Use:   "normalize [payload-file]",
		Short: "Normalize a push webhook payload (stdin when no file is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				payload []byte
				err     error
			)
			if len(args) == 0 || args[0] == "-" {
				payload, err = io.ReadAll(cmd.InOrStdin())
			} else {
				payload, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("read payload: %w", err)
			}
			evt, err := service.Normalize(domain.Platform(platform), payload)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), evt)
		},
	}
	cmd.Flags().StringVar(&platform, "platform", string(domain.PlatformGitHub), "github or gitee")
	return cmd
}
