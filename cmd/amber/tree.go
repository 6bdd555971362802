package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hejijunhao/amber/internal/engine/taxonomy"
	"github.com/hejijunhao/amber/internal/logging"
)

func newTreeCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: "Validate the intent tree and print it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// The rest of the configuration is not validated, so a tree can
			// be inspected on a machine without the model files.
			cfg, err := loadRawConfig(flags)
			if err != nil {
				return err
			}
			tree := taxonomy.Default()
			if cfg.Tree.Path != "" {
				if tree, err = taxonomy.LoadFile(cfg.Tree.Path); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), taxonomy.Render(tree))
			return nil
		},
	}
}

func newBuildCmd(flags *rootFlags) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Embed every example phrase and save a tree snapshot",
		Long: `build parses the tree source, embeds all example phrases with the
configured provider and writes a snapshot. Point tree.snapshot at it to
start without re-embedding. The snapshot is only valid for the provider
and model that built it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			logger := logging.Init(false, logging.ParseLevel(cfg.LogLevel))
			if outPath == "" {
				outPath = cfg.Tree.Snapshot
			}
			if outPath == "" {
				return errors.New("no snapshot path: pass --out or set tree.snapshot")
			}

			emb, db, err := openEmbedder(cfg.Embedder, logger)
			if err != nil {
				return err
			}
			defer func() {
				emb.Close()
				if db != nil {
					db.Close()
				}
			}()

			tree, err := buildTree(cmd.Context(), cfg.Tree.Path, emb)
			if err != nil {
				return err
			}
			if err := taxonomy.SaveSnapshot(outPath, tree, cacheNamespace(cfg.Embedder)); err != nil {
				return err
			}
			logger.Info("snapshot written", "path", outPath, "nodes", tree.Len())
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "snapshot path (default: tree.snapshot)")
	return cmd
}
