package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/streamctl/streamctl/history"
	"github.com/streamctl/streamctl/icon"
	"github.com/streamctl/streamctl/style"
	"github.com/streamctl/streamctl/util"
)

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().BoolP("json", "j", false, "Format the output as JSON")
	historyCmd.Flags().Bool("clear", false, "Forget every played source")
	historyCmd.Flags().StringP("remove", "r", "", "Forget the source with this address")
	historyCmd.MarkFlagsMutuallyExclusive("clear", "remove", "json")
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recently played sources",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if lo.Must(cmd.Flags().GetBool("clear")) {
			handleErr(history.Clear())
			cmd.Printf("%s history cleared\n", icon.Get(icon.Success))
			return
		}

		if address := lo.Must(cmd.Flags().GetString("remove")); address != "" {
			saved, err := history.Get()
			handleErr(err)
			entry, ok := saved[address]
			if !ok {
				handleErr(fmt.Errorf("%q is not in the history", address))
			}
			handleErr(history.Remove(entry))
			cmd.Printf("%s removed %s\n", icon.Get(icon.Success), entry.Title)
			return
		}

		entries, err := history.List()
		handleErr(err)

		if lo.Must(cmd.Flags().GetBool("json")) {
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			handleErr(encoder.Encode(entries))
			return
		}

		if len(entries) == 0 {
			cmd.Println("nothing played yet")
			return
		}

		for _, e := range entries {
			cmd.Printf("%s %s %s\n",
				style.Faint(e.PlayedAt.Format("2006-01-02 15:04")),
				style.Route(e.Route),
				style.Bold(e.Title),
			)
			cmd.Printf("  %s %s\n", style.Faint(e.Address), style.Faint(util.Quantify(e.Plays, "play", "plays")))
		}
	},
}
