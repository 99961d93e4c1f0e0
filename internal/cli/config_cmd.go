package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	Long: `Display the effective configuration (loaded from file or defaults).
The YAML output can be saved and passed back with --config.`,
	RunE: runConfig,
}

var (
	validateOnly bool
	configOut    string
)

func init() {
	configCmd.Flags().BoolVar(&validateOnly, "validate", false, "only validate config, don't print")
	configCmd.Flags().StringVarP(&configOut, "output", "o", "", "write the configuration to this file")
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		if jsonOut {
			fmt.Fprintf(out, `{"valid":false,"error":%q}`+"\n", err.Error())
		} else {
			fmt.Fprintf(out, "Configuration invalid: %v\n", err)
		}
		return err
	}

	if validateOnly {
		if jsonOut {
			fmt.Fprintln(out, `{"valid":true}`)
		} else {
			fmt.Fprintln(out, "Configuration is valid")
		}
		return nil
	}

	if configOut != "" {
		if err := cfg.Save(configOut); err != nil {
			return err
		}
		fmt.Fprintf(out, "Configuration written to %s\n", configOut)
		return nil
	}

	if jsonOut {
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	data, err := cfg.Marshal()
	if err != nil {
		return err
	}
	fmt.Fprint(out, string(data))
	return nil
}
