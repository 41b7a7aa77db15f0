package cmd

import (
	"encoding/json"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/streamctl/streamctl/source"
	"github.com/streamctl/streamctl/style"
)

func init() {
	rootCmd.AddCommand(classifyCmd)
	classifyCmd.Flags().BoolP("json", "j", false, "Format the output as JSON")
}

// classification is one classified address.
type classification struct {
	Address string `json:"address"`
	Route   string `json:"route"`
	Format  string `json:"format,omitempty"`
	Valid   bool   `json:"valid"`
	Reason  string `json:"reason,omitempty"`
}

func classify(address string) classification {
	src := source.New(address, "")
	route := source.Classify(src.Address)

	c := classification{
		Address: src.Address,
		Route:   route.String(),
		Valid:   true,
	}
	if route == source.NativeAdaptive {
		c.Format = source.DetectFormat(src.Address).String()
	}
	if err := src.Validate(); err != nil {
		c.Valid, c.Reason = false, err.Error()
	}
	return c
}

var classifyCmd = &cobra.Command{
	Use:     "classify <address>...",
	Short:   "Show which engine would play each address",
	Example: "  streamctl classify https://example.com/live.m3u8 https://youtu.be/abc",
	Args:    cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		results := lo.Map(args, func(a string, _ int) classification { return classify(a) })

		if lo.Must(cmd.Flags().GetBool("json")) {
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			handleErr(encoder.Encode(results))
			return
		}

		for _, c := range results {
			line := style.Route(c.Route)
			if c.Format != "" {
				line += " " + style.Faint(c.Format)
			}
			line += " " + c.Address
			if !c.Valid {
				line += " " + style.Fg(style.ErrorColor)(c.Reason)
			}
			cmd.Println(line)
		}
	},
}
