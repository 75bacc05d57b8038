package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"quotedesk/internal/config"
	"quotedesk/internal/sheet"
)

// newExtractCmd runs the spreadsheet extraction on a local directory and
// prints the part table, without touching the storage root.
func newExtractCmd(v *viper.Viper, load func() (config.Config, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract <dir>",
		Short: "Print the part table found in a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			res, err := sheet.NewExtractor(cfg.Sheet).Extract(args[0])
			if err != nil {
				return err
			}
			if rel, err := filepath.Rel(args[0], res.Path); err == nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "read %s\n", filepath.ToSlash(rel))
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res.Table)
		},
	}
	cmd.Flags().Int("part-column", 0, "zero-based part number column")
	cmd.Flags().Int("quantity-column", 0, "zero-based quantity column")
	mustBind(v, "sheet.partNumberColumn", cmd.Flags().Lookup("part-column"))
	mustBind(v, "sheet.quantityColumn", cmd.Flags().Lookup("quantity-column"))
	return cmd
}

func newConfigCmd(load func() (config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}
