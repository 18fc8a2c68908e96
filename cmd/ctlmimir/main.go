package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mimir-go/internal/bootstrap"
	"github.com/mimir-go/internal/domain/container"
	"github.com/mimir-go/pkg/config"
	"github.com/mimir-go/pkg/logger"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "ctlmimir",
		Short:         "Manage mimir search containers and templates",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "configuration file (default: ./configs/ctlmimir.yaml)")

	root.AddCommand(newTemplatesCmd(&configPath))
	root.AddCommand(newCreateCmd(&configPath))
	root.AddCommand(newPublishCmd(&configPath))
	root.AddCommand(newDeleteCmd(&configPath))
	root.AddCommand(newPruneCmd(&configPath))
	return root
}

// withRuntime loads configuration, runs fn against a fresh runtime and
// releases it. SIGINT cancels the context handed to fn.
func withRuntime(configPath string, fn func(ctx context.Context, rt *bootstrap.Runtime) error) error {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load("ctlmimir")
	}
	if err != nil {
		return err
	}

	log := logger.New(cfg.Logger.ToLoggerConfig())
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			log.Warn("Failed to close clients", "error", err)
		}
	}()

	return fn(ctx, rt)
}

func newTemplatesCmd(configPath *string) *cobra.Command {
	var componentDir, indexDir string

	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Register component and index templates from directories",
		Long: "Registers every template file found in --components, then every one found in --indices.\n" +
			"A file's name, without extension, is the template name unless the file sets \"name\".",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if componentDir == "" && indexDir == "" {
				return fmt.Errorf("at least one of --components or --indices is required")
			}
			return withRuntime(*configPath, func(ctx context.Context, rt *bootstrap.Runtime) error {
				// Index templates compose component templates, so those go first.
				if componentDir != "" {
					if err := configureDir(ctx, rt.Storage, componentDir, "create component template", cmd.OutOrStdout()); err != nil {
						return err
					}
				}
				if indexDir != "" {
					if err := configureDir(ctx, rt.Storage, indexDir, "create index template", cmd.OutOrStdout()); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&componentDir, "components", "", "directory of component templates")
	cmd.Flags().StringVar(&indexDir, "indices", "", "directory of index templates")
	return cmd
}

func newCreateCmd(configPath *string) *cobra.Command {
	var docType, dataset string

	cmd := &cobra.Command{
		Use:   "create --doc-type <type> --dataset <dataset>",
		Short: "Create an empty container",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(*configPath, func(ctx context.Context, rt *bootstrap.Runtime) error {
				index, err := rt.Storage.CreateContainer(ctx, container.Config{DocType: docType, Dataset: dataset})
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), index.Name)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&docType, "doc-type", "", "document type")
	cmd.Flags().StringVar(&dataset, "dataset", "", "dataset")
	_ = cmd.MarkFlagRequired("doc-type")
	_ = cmd.MarkFlagRequired("dataset")
	return cmd
}

func newPublishCmd(configPath *string) *cobra.Command {
	var visibility string

	cmd := &cobra.Command{
		Use:   "publish <container>",
		Short: "Make a container the live one for its dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := container.ParseVisibility(visibility)
			if err != nil {
				return err
			}
			return withRuntime(*configPath, func(ctx context.Context, rt *bootstrap.Runtime) error {
				index, err := rt.Storage.FindContainer(ctx, args[0])
				if err != nil {
					return err
				}
				if index == nil {
					return fmt.Errorf("container %s not found", args[0])
				}
				if err := rt.Storage.PublishIndex(ctx, *index, v); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "published %s (%s)\n", index.Name, v)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&visibility, "visibility", "private", "private|public")
	return cmd
}

func newDeleteCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <container>",
		Short: "Delete a container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(*configPath, func(ctx context.Context, rt *bootstrap.Runtime) error {
				if err := rt.Storage.DeleteContainer(ctx, args[0]); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return nil
			})
		},
	}
}

func newPruneCmd(configPath *string) *cobra.Command {
	var minAge time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete containers no alias points at",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(*configPath, func(ctx context.Context, rt *bootstrap.Runtime) error {
				pruned, err := rt.Storage.PruneOrphans(ctx, minAge)
				for _, name := range pruned {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", name)
				}
				return err
			})
		},
	}
	cmd.Flags().DurationVar(&minAge, "min-age", 24*time.Hour, "only delete containers older than this")
	return cmd
}
