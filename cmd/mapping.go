package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/declaranet/declara-cli/internal/observability"
	"github.com/declaranet/declara-cli/internal/portal"
)

// newMappingCmd groups the selector-mapping maintenance commands. Portal
// markup drifts between SAT releases; the mapping file is where repairs land.
func newMappingCmd() *cobra.Command {
	mappingCmd := &cobra.Command{
		Use:   "mapping",
		Short: "Manage the portal selector mapping file",
	}
	mappingCmd.AddCommand(newMappingInitCmd(), newMappingCheckCmd())
	return mappingCmd
}

func newMappingInitCmd() *cobra.Command {
	var output string
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the built-in selector map to a file for editing",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(output); err == nil {
				return &usageError{err: fmt.Errorf("%s already exists, refusing to overwrite", output)}
			}
			data, err := json.MarshalIndent(portal.DefaultMapping(), "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal mapping: %w", err)
			}
			if err := os.WriteFile(output, append(data, '\n'), 0o644); err != nil {
				return fmt.Errorf("failed to write mapping file: %w", err)
			}
			observability.GetLogger().Info("Mapping file written.", zap.String("path", output))
			return nil
		},
	}
	initCmd.Flags().StringVarP(&output, "output", "o", "form_field_mapping.json", "where to write the mapping file")
	return initCmd
}

func newMappingCheckCmd() *cobra.Command {
	checkCmd := &cobra.Command{
		Use:   "check <file>",
		Short: "Validate a selector mapping file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := portal.LoadMapping(args[0])
			if err != nil {
				return err
			}
			observability.GetLogger().Info("Mapping file is valid.",
				zap.String("path", args[0]),
				zap.Int("version", m.Version),
				zap.Int("targets", len(m.Targets)))
			return nil
		},
	}
	return checkCmd
}
