package main

import (
	"fmt"
	"text/tabwriter"

	"hcai-scorer/internal/model"

	"github.com/spf13/cobra"
)

func newModelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Manage the saved model registry",
		Long: `Models lists, registers, activates and rolls back the timestamped model
artifacts kept in a registry directory. predict --model-dir scores with the
active model, or the newest one when none is active.`,
	}
	cmd.PersistentFlags().String("dir", "models", "model registry directory")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List registered models, newest first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				registry, err := openRegistry(cmd)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ACTIVE\tVERSION\tTYPE\tALGORITHM\tPATH")
				for _, v := range registry.List() {
					active := ""
					if v.IsActive {
						active = "*"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", active, v.Version, v.Type, v.Algorithm, v.Path)
				}
				return w.Flush()
			},
		},
		&cobra.Command{
			Use:   "register <model>",
			Short: "Copy a saved model into the registry under a timestamped name",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				registry, err := openRegistry(cmd)
				if err != nil {
					return err
				}
				m, err := model.LoadSavedModel(args[0])
				if err != nil {
					return err
				}
				v, err := registry.Register(m)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "registered %s as %s\n", args[0], v.Version)
				return nil
			},
		},
		&cobra.Command{
			Use:   "activate <version>",
			Short: "Make a version the active model",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				registry, err := openRegistry(cmd)
				if err != nil {
					return err
				}
				if err := registry.Activate(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "active model: %s\n", args[0])
				return nil
			},
		},
		&cobra.Command{
			Use:   "rollback",
			Short: "Activate the version before the active one",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				registry, err := openRegistry(cmd)
				if err != nil {
					return err
				}
				if err := registry.Rollback(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "active model: %s\n", registry.Current().Version)
				return nil
			},
		},
	)
	return cmd
}

func openRegistry(cmd *cobra.Command) (*model.Registry, error) {
	dir, _ := cmd.Flags().GetString("dir")
	return model.NewRegistry(dir)
}
