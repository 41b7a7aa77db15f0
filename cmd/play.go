package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/streamctl/streamctl/channel"
	"github.com/streamctl/streamctl/config"
	"github.com/streamctl/streamctl/engine"
	"github.com/streamctl/streamctl/engine/embed"
	"github.com/streamctl/streamctl/engine/mpv"
	"github.com/streamctl/streamctl/engine/native"
	"github.com/streamctl/streamctl/history"
	"github.com/streamctl/streamctl/icon"
	"github.com/streamctl/streamctl/key"
	"github.com/streamctl/streamctl/log"
	"github.com/streamctl/streamctl/metrics"
	"github.com/streamctl/streamctl/player"
	"github.com/streamctl/streamctl/profile"
	"github.com/streamctl/streamctl/quality"
	"github.com/streamctl/streamctl/query"
	"github.com/streamctl/streamctl/source"
	"github.com/streamctl/streamctl/style"
	"github.com/streamctl/streamctl/tui"
	"github.com/streamctl/streamctl/util"
)

func addPlayFlags(flags *pflag.FlagSet) {
	flags.StringP("channel", "C", "", "Play a configured channel, matched by id or name")
	flags.StringP("title", "t", "", "Title shown while playing")
	flags.String("sni-mask", "", "Host announced through the X-SNI-Mask header")
	flags.Bool("proxy", true, "Activate the SNI mask filter when a mask is set")
	flags.StringP("profile", "p", "", "Performance profile: lowLatency, balanced or highQuality")
	flags.Bool("data-saver", false, "Cap adaptive quality to save bandwidth")
	flags.StringP("route", "r", "", "Force an engine route instead of classifying the address")
	flags.Bool("no-tui", false, "Print playback events instead of starting the HUD")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	flags.BoolP("continue", "c", false, "Resume the most recently played source")
}

func init() {
	rootCmd.AddCommand(playCmd)

	flags := playCmd.Flags()
	addPlayFlags(flags)
	playCmd.MarkFlagsMutuallyExclusive("channel", "continue")

	lo.Must0(viper.BindPFlag(key.PlayerPerformanceProfile, flags.Lookup("profile")))
	lo.Must0(viper.BindPFlag(key.PlayerDataSaver, flags.Lookup("data-saver")))

	lo.Must0(playCmd.RegisterFlagCompletionFunc("route", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return source.Routes(), cobra.ShellCompDirectiveNoFileComp
	}))
	lo.Must0(playCmd.RegisterFlagCompletionFunc("profile", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return lo.Map(profile.Profiles(), func(p profile.Profile, _ int) string { return string(p) }), cobra.ShellCompDirectiveNoFileComp
	}))
	lo.Must0(playCmd.RegisterFlagCompletionFunc("channel", func(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		dir, err := channel.Load()
		if err != nil {
			return nil, cobra.ShellCompDirectiveError
		}
		return lo.Map(dir.Find(toComplete), func(c channel.Channel, _ int) string { return c.ID }), cobra.ShellCompDirectiveNoFileComp
	}))
}

var playCmd = &cobra.Command{
	Use:   "play [address]",
	Short: "Play a stream address, a configured channel or the last played source",
	Example: "  streamctl play https://example.com/live/master.m3u8\n" +
		"  streamctl play --channel news --profile lowLatency\n" +
		"  streamctl play --continue --no-tui",
	Args: cobra.MaximumNArgs(1),
	ValidArgsFunction: func(_ *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return query.SuggestMany(toComplete), cobra.ShellCompDirectiveNoFileComp
	},
	Run: func(cmd *cobra.Command, args []string) {
		t, err := resolveTarget(cmd, args)
		handleErr(err)
		handleErr(play(cmd, t))
	},
}

// target is what a play invocation resolved to.
type target struct {
	src     source.StreamSource
	route   mo.Option[source.Route]
	channel string
}

func (t target) resolvedRoute() source.Route {
	return t.route.OrElse(source.Classify(t.src.Address))
}

var errNoTarget = errors.New("an address, --channel or --continue is required")

func resolveTarget(cmd *cobra.Command, args []string) (target, error) {
	var t target
	flags := cmd.Flags()

	switch {
	case lo.Must(flags.GetBool("continue")):
		last, err := history.Last()
		if err != nil {
			return t, err
		}
		entry, ok := last.Get()
		if !ok {
			return t, errors.New("nothing to continue, the history is empty")
		}
		t.src, t.channel = entry.Source(), entry.Channel
		if route, err := source.ParseRoute(entry.Route); err == nil {
			t.route = mo.Some(route)
		}
	case flags.Changed("channel"):
		dir, err := channel.Load()
		if err != nil {
			return t, err
		}
		ch, err := dir.Resolve(lo.Must(flags.GetString("channel")))
		if err != nil {
			return t, err
		}
		t.src, t.channel = ch.Source(), ch.ID
	case len(args) == 1:
		t.src = source.New(args[0], "")
	default:
		ch, err := pickChannel()
		if err != nil {
			return t, err
		}
		t.src, t.channel = ch.Source(), ch.ID
	}

	if flags.Changed("title") {
		titled := source.New(t.src.Address, lo.Must(flags.GetString("title")))
		titled.SNIMask, titled.ProxyActive = t.src.SNIMask, t.src.ProxyActive
		t.src = titled
	}

	if flags.Changed("sni-mask") {
		t.src = t.src.WithMask(lo.Must(flags.GetString("sni-mask")))
	}

	if flags.Changed("proxy") && !lo.Must(flags.GetBool("proxy")) {
		t.src.ProxyActive = false
	}

	if flags.Changed("route") {
		route, err := source.ParseRoute(lo.Must(flags.GetString("route")))
		if err != nil {
			return t, err
		}
		t.route = mo.Some(route)
	}

	return t, nil
}

var (
	interactive = util.IsTerminal
	ask         = func(p survey.Prompt, response any) error { return survey.AskOne(p, response) }
)

// pickChannel lets the user choose from the directory when play was given nothing
// on a terminal.
func pickChannel() (channel.Channel, error) {
	if !interactive() {
		return channel.Channel{}, errNoTarget
	}

	dir, err := channel.Load()
	if err != nil {
		return channel.Channel{}, err
	}
	if dir.Len() == 0 {
		return channel.Channel{}, errNoTarget
	}

	channels := dir.All()
	prompt := &survey.Select{
		Message:  "Channel",
		Options:  lo.Map(channels, func(c channel.Channel, _ int) string { return c.String() }),
		PageSize: 15,
	}

	var choice int
	if err := ask(prompt, &choice); err != nil {
		return channel.Channel{}, err
	}
	return channels[choice], nil
}

// registry wires every engine route to its backend.
func registry() engine.Registry {
	return engine.Registry{
		source.NativeAdaptive: native.Constructor(native.OptionsFromConfig()),
		source.Compatibility:  mpv.Constructor(mpv.OptionsFromConfig()),
		source.EmbedFallback:  embed.Constructor(embed.OptionsFromConfig()),
	}
}

func newController() *player.Controller {
	volume := float64(viper.GetInt(key.PlayerVolume)) / 100

	return player.New(player.Options{
		Factory:        registry(),
		Settings:       profile.Load(),
		Autoplay:       viper.GetBool(key.PlayerAutoplay),
		SampleInterval: time.Duration(viper.GetInt(key.PlayerTelemetryInterval)) * time.Millisecond,
		Volume:         mo.Some(util.Clamp(volume, 0, 1)),
	})
}

// remember records a started source. Failures only cost the history.
func remember(t target) {
	if err := history.Save(t.src, t.resolvedRoute(), t.channel); err != nil {
		log.Warn(err)
	}
	if err := query.Remember(t.src.Address, 1); err != nil {
		log.Warn(err)
	}
}

func play(cmd *cobra.Command, t target) error {
	route := t.resolvedRoute()
	if route == source.Compatibility {
		CheckDependencies()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	controller := newController()
	defer controller.Close()

	config.Watch(func() {
		log.Info("config changed, applying settings")
		controller.ApplySettings(profile.Load())
	})

	if addr := lo.Must(cmd.Flags().GetString("metrics-addr")); addr != "" {
		m := metrics.New()
		go m.Run(ctx, controller.Subscribe())
		go func() {
			if err := m.Serve(ctx, addr); err != nil {
				log.Error(err)
			}
		}()
	}

	headless := lo.Must(cmd.Flags().GetBool("no-tui")) || !util.IsTerminal()
	telemetry := profile.Load().NeuralHUD

	var events *player.Subscription
	if headless {
		kinds := []player.EventKind{player.SessionStarted, player.StateChanged, player.TracksChanged, player.Retrying, player.Failed}
		if telemetry {
			kinds = append(kinds, player.TelemetrySampled)
		}
		events = controller.Subscribe(kinds...)
		defer events.Close()
	}

	remember(t)
	if t.route.IsPresent() {
		controller.LoadRoute(t.src, route)
	} else {
		controller.Load(t.src)
	}

	if headless {
		return follow(ctx, cmd, events)
	}

	dir, err := channel.Load()
	if err != nil {
		log.Warn(err)
		dir = nil
	}

	return tui.Run(&tui.Options{
		Controller: controller,
		Directory:  dir,
		Telemetry:  telemetry,
		OnLoad: func(ch channel.Channel) {
			remember(target{src: ch.Source(), channel: ch.ID})
		},
	})
}

// follow prints events until interrupted. A terminal failure ends it with that error.
func follow(ctx context.Context, cmd *cobra.Command, events *player.Subscription) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events.C():
			if !ok {
				return nil
			}
			if ev.Kind == player.Failed {
				if ev.Err != nil {
					return ev.Err
				}
				return errors.New("playback failed")
			}
			cmd.Println(describe(ev))
		}
	}
}

func describe(ev player.Event) string {
	stamp := style.Faint(ev.Time.Format("15:04:05"))

	switch ev.Kind {
	case player.SessionStarted:
		return fmt.Sprintf("%s %s %s %s", stamp, icon.Get(icon.Signal), style.Route(ev.Route.String()), ev.Source.Title())
	case player.StateChanged:
		return fmt.Sprintf("%s %s -> %s", stamp, style.State(ev.From.String()), style.State(ev.To.String()))
	case player.TracksChanged:
		labels := lo.Map(ev.Tracks, func(t quality.Track, _ int) string {
			if t.Active {
				return style.Bold(quality.Label(t))
			}
			return quality.Label(t)
		})
		if len(labels) == 0 {
			return fmt.Sprintf("%s no quality tracks", stamp)
		}
		return fmt.Sprintf("%s %s", stamp, strings.Join(labels, ", "))
	case player.Retrying:
		wait := time.Until(ev.Retry.NextRetryAt).Round(100 * time.Millisecond)
		msg := fmt.Sprintf("%s retry %d/%d in %s", stamp, ev.Retry.Attempt, profile.MaxRetryAttempts-1, util.Max(wait, 0))
		if ev.Retry.LastError != nil {
			msg += ": " + ev.Retry.LastError.Message
		}
		return msg
	case player.TelemetrySampled:
		s := ev.Sample
		return fmt.Sprintf("%s %d kbps  buffer %.1fs  latency %.1fs  %d fps  %s",
			stamp, s.BitrateKbps, s.BufferSeconds, s.LatencySeconds, s.FPS, s.Codec)
	default:
		return fmt.Sprintf("%s %s", stamp, ev.Kind)
	}
}
