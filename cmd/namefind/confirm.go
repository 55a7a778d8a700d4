package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/namefind/internal/api"
	"github.com/jackzampolin/namefind/internal/reconcile"
)

var confirmCmd = &cobra.Command{
	Use:   "confirm <document> <candidate#>...",
	Short: "Confirm candidates and save them as annotations",
	Long: `Run a detection cycle, confirm the numbered candidates (as printed by
"namefind detect") and write the resulting annotations back to the document.

A candidate that overlaps an earlier confirmation in the same call has already
been superseded and is skipped.

Examples:
  namefind confirm chapter1.yaml 1
  namefind confirm chapter1.yaml 2 5`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		indexes := make([]int, 0, len(args)-1)
		for _, arg := range args[1:] {
			n, err := strconv.Atoi(arg)
			if err != nil || n < 1 {
				return fmt.Errorf("invalid candidate number %q", arg)
			}
			indexes = append(indexes, n)
		}

		ctx, svc, err := setupServices(cmd.Context())
		if err != nil {
			return err
		}
		s, err := openSession(ctx, args[0])
		if err != nil {
			return err
		}
		if err := s.view.Detect(ctx); err != nil {
			return err
		}

		candidates, err := s.view.Elements(ctx)
		if err != nil {
			return err
		}
		for _, n := range indexes {
			if n > len(candidates) {
				return fmt.Errorf("candidate %d out of range (%d candidates)", n, len(candidates))
			}
		}

		for _, n := range indexes {
			e := candidates[n-1]
			if _, err := s.view.Confirm(ctx, e.ID); err != nil {
				if errors.Is(err, reconcile.ErrUnknownEntity) {
					svc.Logger.Warn("candidate superseded by an earlier confirmation", "candidate", n, "span", e.Span)
					continue
				}
				return err
			}
		}

		if err := s.save(); err != nil {
			return err
		}

		report, err := s.report(ctx)
		if err != nil {
			return err
		}
		return api.Output(report)
	},
}
