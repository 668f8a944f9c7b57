package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/yeisme/pubvault/pkg/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, c *app.Container) error {
			a, err := app.NewApp(c)
			if err != nil {
				return err
			}

			return a.Run(ctx)
		})
	},
}

// registerServeCommand 注册 serve 命令.
func registerServeCommand() {
	rootCmd.AddCommand(serveCmd)
}
