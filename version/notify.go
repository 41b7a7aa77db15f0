package version

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/viper"
	"github.com/streamctl/streamctl/color"
	"github.com/streamctl/streamctl/constant"
	"github.com/streamctl/streamctl/icon"
	"github.com/streamctl/streamctl/key"
	"github.com/streamctl/streamctl/style"
	"github.com/streamctl/streamctl/util"
)

// Notify prints a notice when a newer release exists.
func Notify() {
	if !viper.GetBool(key.CliVersionCheck) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	erase := util.PrintErasable(fmt.Sprintf("%s Checking if new version is available...", icon.Get(icon.Progress)))
	latest, err := Latest(ctx)
	erase()
	if err != nil {
		return
	}

	if comp, err := Compare(latest, constant.Version); err != nil || comp <= 0 {
		return
	}

	fmt.Printf(`
%s New version is available %s %s
%s

`,
		style.Fg(color.Green)("▇▇▇"),
		style.Bold(latest),
		style.Faint(fmt.Sprintf("(You're on %s)", constant.Version)),
		style.Faint("https://github.com/streamctl/streamctl/releases/tag/v"+latest),
	)
}
