package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"vividd/internal/cache"
	"vividd/internal/registry"
)

func buildModelsCmd(flags *rootFlags) *cobra.Command {
	models := &cobra.Command{
		Use:   "models",
		Short: "Inspect and manage the local artifact cache",
	}

	newManager := func() (*cache.Manager, error) {
		cfg, err := loadConfig(flags)
		if err != nil {
			return nil, err
		}
		return cache.New(registry.New(), cache.Config{
			CacheDir:            cfg.CacheDir,
			MarginPercent:       cfg.DiskMarginPercent,
			ProgressStepPercent: cfg.ProgressStepPercent,
			Logger:              newLogger(flags.logLevel),
		})
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List known artifacts and their cache state",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := newManager()
			if err != nil {
				return err
			}
			for _, a := range mgr.Registry() {
				e, err := mgr.Status(a.ID)
				if err != nil {
					return err
				}
				fmt.Printf("%-28s kind=%-3s res=%s size=%-4s status=%-11s progress=%d%%\n",
					a.ID, a.Kind, a.Resolution, a.Size, e.Status, e.ProgressPercent)
			}
			return nil
		},
	}

	download := &cobra.Command{
		Use:   "download <artifact-id>",
		Short: "Download an artifact into the cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := newManager()
			if err != nil {
				return err
			}
			err = mgr.EnsureDownloaded(context.Background(), args[0], func(pct int) {
				fmt.Printf("\r%s: %d%%", args[0], pct)
			})
			fmt.Println()
			return err
		},
	}

	evict := &cobra.Command{
		Use:   "evict <artifact-id>",
		Short: "Remove an artifact's local files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := newManager()
			if err != nil {
				return err
			}
			done, err := mgr.Evict(args[0])
			if err != nil {
				return err
			}
			if !done {
				fmt.Println("nothing to evict")
			}
			return nil
		},
	}

	models.AddCommand(list, download, evict)
	return models
}
