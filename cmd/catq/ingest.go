package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"catalog-query-api/internal/ingest"
	"catalog-query-api/pkg/client"
)

// ingestCmd creates catalog objects from a spreadsheet workbook.
func ingestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <workbook.xlsx>",
		Short: "Create catalog objects from a spreadsheet",
		Long: `Read an XLSX workbook and create its rows on the server. Each sheet is
named after an entity type and starts with a header row of attribute
names; to-one relation columns hold the id of the related object.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			cl, _, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer cl.Logout(cmd.Context())

			provider := client.NewSchemaProvider(cmd.Context(), cl)
			svc := ingest.NewService(provider, cl)
			summary, err := svc.Ingest(cmd.Context(), f)
			if err != nil {
				return fmt.Errorf("batch %s: %w", summary.BatchID, err)
			}
			fmt.Printf("created %d objects (batch %s)\n", summary.Rows, summary.BatchID)
			return nil
		},
	}
}
