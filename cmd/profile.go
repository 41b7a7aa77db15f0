package cmd

import (
	"encoding/json"
	"text/template"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/streamctl/streamctl/color"
	"github.com/streamctl/streamctl/profile"
	"github.com/streamctl/streamctl/style"
)

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.Flags().BoolP("json", "j", false, "Format the output as JSON")
	profileCmd.Flags().StringP("profile", "p", "", "Resolve this profile instead of the configured one")
	profileCmd.Flags().Bool("data-saver", false, "Resolve with the data saver enabled")

	lo.Must0(profileCmd.RegisterFlagCompletionFunc("profile", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return lo.Map(profile.Profiles(), func(p profile.Profile, _ int) string { return string(p) }), cobra.ShellCompDirectiveNoFileComp
	}))
}

var profileTemplate = lo.Must(template.New("profile").Funcs(template.FuncMap{
	"faint":  style.Faint,
	"bold":   style.Bold,
	"accent": style.Fg(color.HiPurple),
}).Parse(`{{ accent "profile" }} {{ bold (printf "%s" .Profile) }}

  {{ faint "Buffering goal" }}      {{ bold (printf "%.0fs" .BufferingGoalSeconds) }}
  {{ faint "Rebuffering goal" }}    {{ bold (printf "%.0fs" .RebufferingGoalSeconds) }}
  {{ faint "Stall threshold" }}     {{ bold (printf "%.1fs" .StallThresholdSeconds) }}
  {{ faint "Stall skip" }}          {{ bold (printf "%.1fs" .StallSkipSeconds) }}
  {{ faint "Live latency target" }} {{ bold (printf "%d segments" .LiveLatencyTargetSegments) }}
  {{ faint "Retries" }}             {{ bold (printf "%d attempts, %s base, x%.1f" .MaxRetryAttempts .RetryBaseDelay .RetryBackoffFactor) }}
  {{ faint "Data saver" }}          {{ bold (printf "%t" .DataSaver) }}{{ if .MaxHeight }} {{ faint (printf "(max %dp)" .MaxHeight) }}{{ end }}
`))

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show the buffering parameters the current settings resolve to",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		settings := profile.Load()

		if cmd.Flags().Changed("profile") {
			p, err := profile.Parse(lo.Must(cmd.Flags().GetString("profile")))
			handleErr(err)
			settings.Profile, settings.LowLatency = p, false
		}
		if cmd.Flags().Changed("data-saver") {
			settings.DataSaver = lo.Must(cmd.Flags().GetBool("data-saver"))
		}

		cfg := settings.Resolve()

		if lo.Must(cmd.Flags().GetBool("json")) {
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			handleErr(encoder.Encode(cfg))
			return
		}

		handleErr(profileTemplate.Execute(cmd.OutOrStdout(), cfg))
	},
}
