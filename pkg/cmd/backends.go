package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/yeisme/pubvault/pkg/internal/storage/db"
	"github.com/yeisme/pubvault/pkg/internal/storage/kv"
	"github.com/yeisme/pubvault/pkg/internal/storage/mq"
)

var (
	dbCmd = &cobra.Command{
		Use:   "db",
		Short: "Database related commands",
	}

	dbListCmd = &cobra.Command{
		Use:     "ls",
		Short:   "list all registered database dialects",
		Aliases: []string{"list"},
		Run: func(cmd *cobra.Command, args []string) {
			printRegistered(cmd.OutOrStdout(), "database dialects", db.GetRegisteredDBTypes())
		},
	}

	kvCmd = &cobra.Command{
		Use:   "kv",
		Short: "Key-Value store (list cache) related commands",
	}

	kvListCmd = &cobra.Command{
		Use:     "ls",
		Short:   "list all registered kv backends",
		Aliases: []string{"list"},
		Run: func(cmd *cobra.Command, args []string) {
			printRegistered(cmd.OutOrStdout(), "kv backends", kv.GetRegisteredKVTypes())
		},
	}

	mqCmd = &cobra.Command{
		Use:   "mq",
		Short: "Event bus related commands",
	}

	mqListCmd = &cobra.Command{
		Use:     "ls",
		Short:   "list all registered mq backends",
		Aliases: []string{"list"},
		Run: func(cmd *cobra.Command, args []string) {
			printRegistered(cmd.OutOrStdout(), "mq backends", mq.GetRegisteredMQTypes())
		},
	}
)

func printRegistered[T ~string](w io.Writer, what string, names []T) {
	fmt.Fprintf(w, "Registered %s:\n", what)

	for _, n := range names {
		fmt.Fprintln(w, " - "+string(n))
	}
}

// registerBackendCommands 注册可插拔后端的查询命令.
func registerBackendCommands() {
	dbCmd.AddCommand(dbListCmd)
	kvCmd.AddCommand(kvListCmd)
	mqCmd.AddCommand(mqListCmd)

	rootCmd.AddCommand(dbCmd, kvCmd, mqCmd)
}
