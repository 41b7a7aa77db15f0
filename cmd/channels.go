package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/streamctl/streamctl/channel"
	"github.com/streamctl/streamctl/key"
	"github.com/streamctl/streamctl/source"
	"github.com/streamctl/streamctl/style"
)

func init() {
	rootCmd.AddCommand(channelsCmd)
	channelsCmd.Flags().BoolP("json", "j", false, "Format the output as JSON")
}

var channelsCmd = &cobra.Command{
	Use:   "channels [query]",
	Short: "List the configured channels, or the ones matching a query",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dir, err := channel.Load()
		handleErr(err)

		if dir.Len() == 0 {
			cmd.Printf("no channels configured, add a [[%s]] table to the config file\n", key.Channels)
			return
		}

		found := dir.All()
		if len(args) == 1 {
			found = dir.Find(args[0])
		}

		if lo.Must(cmd.Flags().GetBool("json")) {
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			handleErr(encoder.Encode(found))
			return
		}

		if len(found) == 0 {
			handleErr(fmt.Errorf("%w: %q", channel.ErrNotFound, args[0]))
		}

		for _, ch := range found {
			route := source.Classify(ch.Address)
			line := fmt.Sprintf("%s %s %s", style.Bold(ch.ID), style.Route(route.String()), ch.String())
			if ch.Proxy && ch.SNIMask != "" {
				line += " " + style.Faint("via "+ch.SNIMask)
			}
			cmd.Println(line)
			cmd.Println("  " + style.Faint(ch.Address))
		}
	},
}
