package cmd

import (
	"fmt"

	"github.com/MeKo-Tech/platescan/internal/recognizer"
	"github.com/MeKo-Tech/platescan/internal/version"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.String())
			if withOCR, _ := cmd.Flags().GetBool("tesseract"); withOCR {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "tesseract %s\n", recognizer.Version())
			}
			return nil
		},
	}
	versionCmd.Flags().Bool("tesseract", false, "also print the linked Tesseract version")
	return versionCmd
}
