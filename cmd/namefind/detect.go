package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/namefind/internal/api"
)

var detectSave bool

var detectCmd = &cobra.Command{
	Use:   "detect <document>",
	Short: "Run one detection cycle and print the candidates",
	Long: `Load a document file, run one detection cycle over it and print the
candidate entities followed by the confirmed ones.

Candidates are numbered; pass those numbers to "namefind confirm".

Examples:
  namefind detect chapter1.yaml
  namefind detect chapter1.yaml -o json
  namefind detect chapter1.yaml --save   # persist derived sentences/tokens`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, svc, err := setupServices(cmd.Context())
		if err != nil {
			return err
		}

		s, err := openSession(ctx, args[0])
		if err != nil {
			return err
		}

		detectErr := s.view.Detect(ctx)
		if detectErr != nil {
			svc.Logger.Error("detection failed", "document", s.path, "error", detectErr)
		}

		report, err := s.report(ctx)
		if err != nil {
			return err
		}
		if err := api.Output(report); err != nil {
			return err
		}

		if detectSave {
			if err := s.save(); err != nil {
				return err
			}
		}
		return detectErr
	},
}

func init() {
	detectCmd.Flags().BoolVar(&detectSave, "save", false, "write the document back, including derived sentences and tokens")
}
