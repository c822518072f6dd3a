package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/creastat/vecstore/vectorstore"
)

var searchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "Similarity search by text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, _ := cmd.Flags().GetInt("k")
		tags, _ := cmd.Flags().GetStringSlice("tag")
		asJSON, _ := cmd.Flags().GetBool("json")

		env, err := openStore(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer env.close()

		results, err := env.store.SimilaritySearchWithScore(cmd.Context(), args[0], k, tags)
		if err != nil {
			return err
		}
		return printResults(cmd.OutOrStdout(), results, asJSON)
	},
}

func printResults(w io.Writer, results []vectorstore.SearchResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	if len(results) == 0 {
		fmt.Fprintln(w, "No results")
		return nil
	}
	for i, r := range results {
		fmt.Fprintf(w, "%d. [%.4f] %s\n", i+1, r.Score, r.Key)
		fmt.Fprintf(w, "   %s\n", r.Content)
		if len(r.Metadata) > 0 {
			md, _ := json.Marshal(r.Metadata)
			fmt.Fprintf(w, "   %s\n", md)
		}
	}
	return nil
}

func init() {
	searchCmd.Flags().IntP("k", "k", 4, "number of neighbours")
	searchCmd.Flags().StringSlice("tag", nil, "only match records whose metadata contains any tag")
	searchCmd.Flags().Bool("json", false, "print results as JSON")
}
