package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/birdhouse-core/internal/infrastructure/gpio"
	"github.com/nerrad567/birdhouse-core/internal/outlet"
)

func newOutletsCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outlets",
		Short: "List outlets with their live GPIO level",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listOutlets(cmd, opts.configPath)
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "seed",
		Short: "Create or update outlets from the outlets section of the config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return seedOutlets(cmd, opts.configPath)
		},
	})
	return cmd
}

func listOutlets(cmd *cobra.Command, configPath string) error {
	ctx := cmd.Context()
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	db, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	outlets, err := outlet.NewSQLiteRepository(db.DB).List(ctx)
	if err != nil {
		return fmt.Errorf("listing outlets: %w", err)
	}

	// The live level is best effort: the daemon may hold the lines.
	sw, err := gpio.Open(cfg.GPIO, outletPins(outlets))
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "gpio unavailable: %v\n", err)
		sw = nil
	} else {
		defer sw.Close()
	}

	return printOutlets(cmd.OutOrStdout(), outlets, sw, time.Now())
}

func printOutlets(out io.Writer, outlets []outlet.Outlet, sw gpio.Switch, now time.Time) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSCHEDULE\tACTIVE\tSTATE\tLAST RAN\tOVERRIDE UNTIL")
	for _, o := range outlets {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			o.ID,
			o.Name,
			orDash(o.Schedule),
			yesNo(o.ScheduleActive),
			liveState(sw, o.ID),
			formatOptional(o.LastRan),
			formatOverride(o, now),
		)
	}
	return tw.Flush()
}

func liveState(sw gpio.Switch, pin int) string {
	if sw == nil {
		return "?"
	}
	on, err := sw.ReadState(pin)
	if err != nil {
		return "error"
	}
	if on {
		return "on"
	}
	return "off"
}

func formatOptional(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}

func formatOverride(o outlet.Outlet, now time.Time) string {
	if !o.Overridden(now) {
		return "-"
	}
	return formatOptional(o.OverrideUntil)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func seedOutlets(cmd *cobra.Command, configPath string) error {
	ctx := cmd.Context()
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	db, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := outlet.NewSQLiteRepository(db.DB)
	for _, oc := range cfg.Outlets {
		o := outlet.Outlet{
			ID:             oc.ID,
			Name:           oc.Name,
			Schedule:       oc.Schedule,
			InitialState:   oc.InitialState,
			ScheduleActive: oc.ScheduleActive,
		}
		if err := repo.Upsert(ctx, &o); err != nil {
			return fmt.Errorf("seeding outlet %d: %w", oc.ID, err)
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "seeded %d outlets\n", len(cfg.Outlets))
	return nil
}
