package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/neo-data-etl/internal/adapter/store"
	"github.com/couchcryptid/neo-data-etl/internal/query"
)

// check tracks pass/fail for one group of assertions.
type check struct {
	name   string
	errors []string
}

func (c *check) errorf(format string, args ...any) {
	c.errors = append(c.errors, fmt.Sprintf(format, args...))
}

func (c *check) passed() bool { return len(c.errors) == 0 }

func checkCommand(a *app) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify the catalog against the store and report table consistency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			checks := runChecks(cmd.Context(), s, strict)
			if !printChecks(cmd.OutOrStdout(), checks) {
				return errors.New("store check failed")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "treat duplicates and unmatched rows as failures")
	return cmd
}

func runChecks(ctx context.Context, s *store.Store, strict bool) []*check {
	catalogCheck := &check{name: "query catalog"}
	if catalog, err := query.LoadCatalog(); err != nil {
		catalogCheck.errorf("load: %v", err)
	} else if err := catalog.Verify(ctx, s.DB()); err != nil {
		catalogCheck.errorf("%v", err)
	}

	tables := &check{name: "table consistency"}
	audit, err := s.Audit(ctx)
	switch {
	case err != nil:
		tables.errorf("audit: %v", err)
	case strict:
		if audit.DuplicateObjectIDs > 0 {
			tables.errorf("%d object ids appear more than once in %s", audit.DuplicateObjectIDs, store.TableAsteroids)
		}
		if audit.OrphanApproaches > 0 {
			tables.errorf("%d %s rows have no matching object", audit.OrphanApproaches, store.TableCloseApproach)
		}
		if audit.ObjectsWithoutApproach > 0 {
			tables.errorf("%d objects have no %s row", audit.ObjectsWithoutApproach, store.TableCloseApproach)
		}
	}
	if err == nil {
		tables.name = fmt.Sprintf("table consistency (%d asteroids, %d approaches, %d duplicate ids, %d orphan approaches, %d objects without approach)",
			audit.Asteroids, audit.Approaches, audit.DuplicateObjectIDs, audit.OrphanApproaches, audit.ObjectsWithoutApproach)
	}

	runs := &check{name: "ingestion runs"}
	recent, err := s.RecentRuns(ctx, 1)
	switch {
	case err != nil:
		runs.errorf("list runs: %v", err)
	case len(recent) == 0:
		runs.name = "ingestion runs (none recorded)"
	default:
		last := recent[0]
		runs.name = fmt.Sprintf("ingestion runs (last %s: %d normalized, %d+%d+%d dropped)",
			last.ID, last.Normalized, last.DroppedNoCloseApproach, last.DroppedMissingField, last.DroppedMalformedField)
		if strict && (last.AsteroidFailures > 0 || last.ApproachFailures > 0) {
			runs.errorf("last run skipped %d asteroid and %d approach rows", last.AsteroidFailures, last.ApproachFailures)
		}
	}

	return []*check{catalogCheck, tables, runs}
}

func printChecks(w io.Writer, checks []*check) bool {
	ok := true
	for _, c := range checks {
		if c.passed() {
			fmt.Fprintf(w, "PASS  %s\n", c.name)
			continue
		}
		ok = false
		fmt.Fprintf(w, "FAIL  %s\n", c.name)
		for _, e := range c.errors {
			fmt.Fprintf(w, "      - %s\n", e)
		}
	}
	return ok
}
