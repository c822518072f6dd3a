package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index management (create, drop, info)",
}

var indexCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create the index unless it exists",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dim, _ := cmd.Flags().GetInt("dim")

		env, err := openStore(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer env.close()

		if err := env.store.EnsureIndex(cmd.Context(), dim); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Index %s ready (dim=%d)\n", env.cfg.Index.Name, dim)
		return nil
	},
}

var indexDropCmd = &cobra.Command{
	Use:   "drop",
	Short: "Drop the index",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		deleteRecords, _ := cmd.Flags().GetBool("delete-records")

		env, err := openStore(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer env.close()

		dropped, err := env.store.DropIndex(cmd.Context(), deleteRecords)
		if err != nil {
			return err
		}
		if !dropped {
			fmt.Fprintf(cmd.OutOrStdout(), "Index %s does not exist\n", env.cfg.Index.Name)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Dropped index %s\n", env.cfg.Index.Name)
		return nil
	},
}

var indexInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the number of records in the index",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openStore(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer env.close()

		info, err := env.store.Backend().IndexInfo(cmd.Context(), env.cfg.Index.Name)
		if err != nil {
			return err
		}
		schema := env.store.Schema()
		fmt.Fprintf(cmd.OutOrStdout(), "index:   %s\nprefix:  %s\nrecords: %d\n", info.Name, schema.Prefix, info.NumDocs)
		return nil
	},
}

func init() {
	indexCreateCmd.Flags().Int("dim", 1536, "vector dimensionality")
	indexDropCmd.Flags().Bool("delete-records", false, "also delete the records under the index prefix")

	indexCmd.AddCommand(indexCreateCmd, indexDropCmd, indexInfoCmd)
}
