package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/star/umbra/internal/eclipse"
	"github.com/star/umbra/internal/timezone"
)

func newZonesCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "zones",
		Short: "List the supported UTC offsets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := eclipse.ParseFormat(format)
			if err != nil {
				return err
			}
			zones := timezone.Zones()
			out := cmd.OutOrStdout()

			switch f {
			case eclipse.FormatJSON:
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(zones)
			case eclipse.FormatYAML:
				enc := yaml.NewEncoder(out)
				defer enc.Close()
				return enc.Encode(zones)
			}
			for _, z := range zones {
				fmt.Fprintf(out, "%+3d  %s\n", z.Offset, z.Label)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", string(eclipse.FormatText), "output format: text, json or yaml")
	return cmd
}
