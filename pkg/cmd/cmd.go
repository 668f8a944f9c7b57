// Package cmd contains the command line applications for the project.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yeisme/pubvault/pkg/app"
	"github.com/yeisme/pubvault/pkg/configs"
)

var (
	// configPath 配置文件或其所在目录.
	configPath string
	// debug 调试模式，覆盖 server.debug.
	debug bool

	rootCmd = &cobra.Command{
		Use:          "pubvault",
		Short:        "A catalog of scientific publications with PDF and BibTeX attachments",
		Version:      configs.AppVersion,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if debug {
				return os.Setenv(configs.EnvPrefix+"_SERVER_DEBUG", "true")
			}

			return nil
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", ".", "config file or directory")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug mode")

	registerServeCommand()
	registerCatalogCommands()
	registerConfigsCommands()
	registerBackendCommands()
}

// Execute runs the root command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return rootCmd.ExecuteContext(ctx)
}

// withContainer 加载配置并组装依赖，执行 fn 后释放资源.
func withContainer(cmd *cobra.Command, fn func(ctx context.Context, c *app.Container) error) (err error) {
	ctx := cmd.Context()

	c, err := app.Bootstrap(ctx, configPath)
	if err != nil {
		return err
	}

	defer func() {
		if cerr := c.Close(context.Background()); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return fn(ctx, c)
}
