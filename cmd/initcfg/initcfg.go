package initcfg

import (
	"fmt"
	"os"

	"github.com/gnunet-go/gnunet/examples"
	"github.com/spf13/cobra"
)

var (
	outputPath string

	Cmd = &cobra.Command{
		Use:   "init",
		Short: "Write a service configuration template",
		Args:  cobra.NoArgs,
		RunE:  run,
	}
)

func init() {
	Cmd.Flags().StringVarP(&outputPath, "output", "o", "config.yaml", "Destination file, or - for stdout")
}

func run(cmd *cobra.Command, args []string) error {
	template, err := examples.Config()
	if err != nil {
		return err
	}

	if outputPath == "-" {
		_, err := os.Stdout.Write(template)
		return err
	}

	if _, err := os.Stat(outputPath); err == nil {
		return fmt.Errorf("refusing to overwrite %s", outputPath)
	}
	if err := os.WriteFile(outputPath, template, 0o644); err != nil {
		return err
	}

	fmt.Printf("wrote %s\n", outputPath)
	return nil
}
