package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/creastat/vecstore/vectorstore"
)

var addCmd = &cobra.Command{
	Use:   "add <text>...",
	Short: "Embed texts and add them to the index",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rawMetadata, _ := cmd.Flags().GetString("metadata")
		keys, _ := cmd.Flags().GetStringSlice("key")

		var md map[string]any
		if rawMetadata != "" {
			if err := json.Unmarshal([]byte(rawMetadata), &md); err != nil {
				return fmt.Errorf("parse --metadata: %w", err)
			}
		}

		env, err := openStore(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer env.close()

		docs := make([]vectorstore.Document, len(args))
		for i, text := range args {
			docs[i] = vectorstore.Document{PageContent: text, Metadata: md}
		}
		var opts []vectorstore.AddOption
		if len(keys) > 0 {
			opts = append(opts, vectorstore.WithKeys(keys...))
		}

		written, err := env.store.AddDocuments(cmd.Context(), docs, opts...)
		if err != nil {
			return err
		}
		for _, key := range written {
			fmt.Fprintln(cmd.OutOrStdout(), key)
		}
		return nil
	},
}

func init() {
	addCmd.Flags().String("metadata", "", "JSON object stored with every text")
	addCmd.Flags().StringSlice("key", nil, "explicit record keys, one per text")
}
