package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/neo-data-etl/internal/query"
)

func catalogCommand(_ *app) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List the named queries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, err := query.LoadCatalog()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE")
			for _, q := range catalog.Queries() {
				fmt.Fprintf(tw, "%s\t%s\n", q.ID, q.Title)
			}
			return tw.Flush()
		},
	}
}

func queryCommand(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "query <id>",
		Short: "Run a named query from the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			svc, s, err := a.openQueries(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := svc.Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), format, res)
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "output format (json or csv)")
	return cmd
}

func filterCommand(a *app) *cobra.Command {
	var (
		format string
		hazard string
		f      = query.DefaultFilter()
	)

	cmd := &cobra.Command{
		Use:   "filter",
		Short: "List close approaches matching the given bounds, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			h, err := query.ParseHazard(hazard)
			if err != nil {
				return err
			}
			f.Hazardous = h
			if err := f.Validate(); err != nil {
				return err
			}

			svc, s, err := a.openQueries(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := svc.Filter(cmd.Context(), f)
			if err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), format, res)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.Date, "date", "", "close approach date, YYYY-MM-DD")
	fl.Float64Var(&f.VelocityMin, "velocity-min", f.VelocityMin, "minimum relative velocity in km/h")
	fl.Float64Var(&f.VelocityMax, "velocity-max", f.VelocityMax, "maximum relative velocity in km/h")
	fl.Float64Var(&f.AUMax, "au-max", 0, "maximum miss distance in AU (0 = any)")
	fl.Float64Var(&f.LunarMax, "lunar-max", 0, "maximum miss distance in lunar distances (0 = any)")
	fl.Float64Var(&f.DiameterMin, "diameter-min", 0, "minimum estimated diameter in km (0 = any)")
	fl.Float64Var(&f.DiameterMax, "diameter-max", 0, "maximum estimated diameter in km (0 = any)")
	fl.StringVar(&hazard, "hazardous", "All", "All, Yes or No")
	fl.StringVar(&format, "format", "json", "output format (json or csv)")
	return cmd
}

func checkFormat(format string) error {
	switch format {
	case "json", "csv":
		return nil
	default:
		return fmt.Errorf("unknown format %q (want json or csv)", format)
	}
}

func writeResult(w io.Writer, format string, res query.Result) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case "csv":
		return res.WriteCSV(w)
	default:
		return fmt.Errorf("unknown format %q (want json or csv)", format)
	}
}
