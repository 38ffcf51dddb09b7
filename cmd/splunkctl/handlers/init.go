package handlers

import (
	"context"
	"fmt"
	"os"

	"github.com/imamik/splunkctl/internal/config"
)

// Factory function variables for init - can be replaced in tests.
var (
	// fileExists checks if a file exists.
	fileExists = func(path string) bool {
		_, err := os.Stat(path)
		return err == nil
	}

	// runWizard asks the init questions.
	runWizard = config.RunWizard

	// writeConfig writes the cluster definition to a file.
	writeConfig = config.Save
)

// Init runs the configuration wizard and writes the result to outputPath.
func Init(ctx context.Context, outputPath string) error {
	if fileExists(outputPath) {
		fmt.Fprintf(stdout, "Warning: %s already exists and will be overwritten.\n\n", outputPath)
	}

	result, err := runWizard(ctx)
	if err != nil {
		return err
	}

	cfg := result.ToConfig()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("wizard produced an invalid cluster definition: %w", err)
	}
	if err := writeConfig(cfg, outputPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	printInitSuccess(outputPath, cfg)
	return nil
}

func printInitSuccess(outputPath string, cfg *config.Config) {
	fmt.Fprintf(stdout, "Configuration saved to %s\n\n", outputPath)
	fmt.Fprintf(stdout, "  Cluster:  %s (%s)\n", cfg.Cluster.Name, cfg.AWS.Region)
	for _, role := range config.Roles() {
		if spec := cfg.Nodes[role]; spec.Count > 0 {
			fmt.Fprintf(stdout, "  %-14s %d x %s\n", string(role)+":", spec.Count, spec.InstanceType)
		}
	}
	fmt.Fprintf(stdout, "  Executor: %s\n\n", cfg.Bootstrap.Executor)
	fmt.Fprintf(stdout, "Review the file, then run:\n  splunkctl plan -c %s\n  splunkctl apply -c %s\n", outputPath, outputPath)
}
