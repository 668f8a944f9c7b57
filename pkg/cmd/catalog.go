package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/yeisme/pubvault/pkg/app"
	"github.com/yeisme/pubvault/pkg/internal/types"
)

var (
	// assumeYes 跳过 clear/reset 的确认.
	assumeYes bool
	// enrichLimit enrich 命令最多处理的记录数.
	enrichLimit int

	errNotConfirmed = errors.New("refusing to continue without --yes")

	importCmd = &cobra.Command{
		Use:   "import <dir>",
		Short: "import PDF/BibTeX pairs from <dir>/<year>/",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, func(ctx context.Context, c *app.Container) error {
				res, err := c.Ingest.ImportDir(ctx, args[0])
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "imported: %d, skipped: %d, errors: %d\n", res.Imported, res.Skipped, len(res.Errors))
				printItemErrors(out, res.Errors)

				return nil
			})
		},
	}

	exportCmd = &cobra.Command{
		Use:   "export <file.csv>",
		Short: "export the whole catalog to a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, func(ctx context.Context, c *app.Container) error {
				n, err := c.CSV.ExportFile(ctx, args[0])
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "exported %d rows to %s\n", n, args[0])

				return nil
			})
		},
	}

	importCSVCmd = &cobra.Command{
		Use:   "import-csv <file.csv>",
		Short: "upsert records from a CSV file produced by export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, func(ctx context.Context, c *app.Container) error {
				res, err := c.CSV.ImportFile(ctx, args[0])
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "rows imported: %d, errors: %d\n", res.Imported, len(res.Errors))
				printItemErrors(out, res.Errors)

				return nil
			})
		},
	}

	clearCmd = &cobra.Command{
		Use:   "clear",
		Short: "delete every record (attachments stay on disk)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !assumeYes {
				return errNotConfirmed
			}

			return withContainer(cmd, func(ctx context.Context, c *app.Container) error {
				return c.Publications.Clear(ctx)
			})
		},
	}

	resetCmd = &cobra.Command{
		Use:   "reset",
		Short: "drop and recreate the publications table (attachments stay on disk)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !assumeYes {
				return errNotConfirmed
			}

			return withContainer(cmd, func(ctx context.Context, c *app.Container) error {
				return c.Publications.Reset(ctx)
			})
		},
	}

	enrichCmd = &cobra.Command{
		Use:   "enrich",
		Short: "fill the journal of records from their stored BibTeX files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, func(ctx context.Context, c *app.Container) error {
				res, err := c.Enrich.Run(ctx, enrichLimit)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "scanned: %d, updated: %d, errors: %d\n", res.Scanned, res.Updated, len(res.Errors))
				printItemErrors(out, res.Errors)

				return nil
			})
		},
	}
)

func printItemErrors(w io.Writer, errs []types.ItemError) {
	for _, e := range errs {
		fmt.Fprintf(w, "  - %s: %s\n", e.Item, e.Reason)
	}
}

// registerCatalogCommands 注册目录维护命令.
func registerCatalogCommands() {
	clearCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "confirm the operation")
	resetCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "confirm the operation")
	enrichCmd.Flags().IntVar(&enrichLimit, "limit", 0, "max records to process, 0 for all")

	rootCmd.AddCommand(importCmd, exportCmd, importCSVCmd, clearCmd, resetCmd, enrichCmd)
}
