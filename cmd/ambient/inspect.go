package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/bft-labs/ambient/internal/config"
	"github.com/bft-labs/ambient/internal/domain"
	"github.com/bft-labs/ambient/pkg/ambient"
)

func (c *cli) modulesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "modules",
		Short: "List the configured modules and their schedules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loader(cmd).load()
			if err != nil {
				return err
			}
			specs, errs := config.BuildSpecs(cfg)
			fmt.Fprintln(cmd.OutOrStdout(), modulesTable(specs))
			if len(errs) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%d module(s) rejected, run 'ambient validate' for details\n", len(errs))
			}
			return nil
		},
	}
}

func modulesTable(specs []domain.ModuleSpec) string {
	rows := make([][]string, 0, len(specs))
	for _, s := range specs {
		rows = append(rows, []string{
			s.ID,
			string(s.Kind),
			string(s.Position),
			formatInterval(s.ReloadInterval),
			formatInterval(s.UpdateInterval),
			formatInterval(s.FetchTimeout),
			strconv.Itoa(s.Policy.MaxItems),
		})
	}
	return renderTable(
		[]string{"ID", "Kind", "Position", "Reload", "Rotate", "Timeout", "Max Items"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight},
	)
}

// errInvalidModules makes validate exit non-zero after printing its table.
var errInvalidModules = errors.New("configuration has invalid modules")

func (c *cli) validateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and report every invalid module",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loader(cmd).load()
			if err != nil {
				return err
			}
			specs, errs := config.BuildSpecs(cfg)
			if len(errs) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "configuration OK: %d module(s)\n", len(specs))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), configErrorsTable(errs))
			return fmt.Errorf("%w: %d of %d", errInvalidModules, len(errs), len(specs)+len(errs))
		},
	}
}

func configErrorsTable(errs []error) string {
	rows := make([][]string, 0, len(errs))
	for _, err := range errs {
		var ce *domain.ConfigError
		if !errors.As(err, &ce) {
			rows = append(rows, []string{"", "", "", err.Error()})
			continue
		}
		rows = append(rows, []string{
			strconv.Itoa(ce.Index),
			ce.Module,
			ce.Field,
			ce.Message,
		})
	}
	return renderTable(
		[]string{"#", "Module", "Field", "Problem"},
		rows,
		[]columnAlignment{alignRight},
	)
}

func (c *cli) snapshotCommand() *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Fetch every module once and print what the display would show",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loader(cmd).load()
			if err != nil {
				return err
			}
			a, err := ambient.New(cfg)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), wait)
			defer cancel()
			if err := a.Start(ctx); err != nil {
				return err
			}
			waitLoaded(ctx, a)
			snaps := a.Snapshots()
			if err := a.Stop(); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), snapshotTable(snaps))
			return nil
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 10*time.Second, "how long to wait for modules to load")
	return cmd
}

// waitLoaded polls until every module has a first result or ctx is done.
func waitLoaded(ctx context.Context, a *ambient.Ambient) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		loaded := true
		for _, s := range a.Snapshots() {
			if !s.Loaded {
				loaded = false
				break
			}
		}
		if loaded {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func snapshotTable(snaps []ambient.Snapshot) string {
	var rows [][]string
	for _, s := range snaps {
		name := s.Name
		if s.Header != "" {
			name += " (" + s.Header + ")"
		}
		switch {
		case s.Error != nil:
			rows = append(rows, []string{string(s.Position), name, "error: " + s.Error.Message})
		case !s.Loaded:
			rows = append(rows, []string{string(s.Position), name, "loading..."})
		case s.Empty():
			rows = append(rows, []string{string(s.Position), name, "-"})
		}
		for i, it := range s.Visible {
			if i > 0 || s.Error != nil {
				name = ""
			}
			rows = append(rows, []string{string(s.Position), name, itemLine(it)})
		}
	}
	return renderTable([]string{"Position", "Module", "Shows"}, rows, nil)
}
