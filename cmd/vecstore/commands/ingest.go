package commands

import (
	"fmt"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/creastat/vecstore/vectorstore"
)

const maxConcurrentSources = 4

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load documents from Supabase and index them",
	Long: `Load documents from the Supabase documents table and add them to the index.

Sources are fetched concurrently; documents are embedded and written in
batches afterwards.

Examples:
  vecstore ingest --source 3f2c... --source 9a71...
  vecstore ingest --id doc-1 --id doc-2`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sources, _ := cmd.Flags().GetStringSlice("source")
		ids, _ := cmd.Flags().GetStringSlice("id")
		if len(sources) == 0 && len(ids) == 0 {
			return fmt.Errorf("one of --source or --id is required")
		}
		ctx := cmd.Context()

		env, err := openStore(ctx, true)
		if err != nil {
			return err
		}
		defer env.close()

		src, err := env.cfg.NewSource()
		if err != nil {
			return err
		}
		defer src.Close()

		var (
			mu   sync.Mutex
			docs []vectorstore.Document
		)
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(maxConcurrentSources)
		for _, sourceID := range sources {
			g.Go(func() error {
				loaded, err := src.DocumentsBySource(gctx, sourceID)
				if err != nil {
					return fmt.Errorf("source %s: %w", sourceID, err)
				}
				env.logger.DebugContext(gctx, "source loaded", "source_id", sourceID, "documents", len(loaded))
				mu.Lock()
				docs = append(docs, loaded...)
				mu.Unlock()
				return nil
			})
		}
		if len(ids) > 0 {
			g.Go(func() error {
				loaded, err := src.DocumentsByIDs(gctx, ids)
				if err != nil {
					return err
				}
				mu.Lock()
				docs = append(docs, loaded...)
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		if len(docs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No documents to ingest")
			return nil
		}
		keys, err := env.store.AddDocuments(ctx, docs)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d documents into %s\n", len(keys), env.cfg.Index.Name)
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringSlice("source", nil, "source ids to ingest")
	ingestCmd.Flags().StringSlice("id", nil, "document ids to ingest")
}
