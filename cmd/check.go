package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/viper"
	"github.com/streamctl/streamctl/constant"
	"github.com/streamctl/streamctl/icon"
	"github.com/streamctl/streamctl/key"
	"github.com/streamctl/streamctl/style"
)

// CheckDependencies exits with an install hint when the mpv executable
// used by the compatibility route cannot be found.
func CheckDependencies() {
	path := viper.GetString(key.MPVPath)
	if path == "" {
		path = "mpv"
	}

	if _, err := exec.LookPath(path); err != nil {
		printMissingDependencyError(path)
		os.Exit(1)
	}
}

func installHint() string {
	switch runtime.GOOS {
	case constant.Darwin:
		return "brew install mpv"
	case constant.Linux:
		return "sudo apt install mpv"
	case constant.Windows:
		return "scoop install mpv"
	default:
		return ""
	}
}

func printMissingDependencyError(dep string) {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(style.ErrorColor).
		Padding(1, 2).
		Margin(1, 0)

	title := style.New().Bold(true).Foreground(style.ErrorColor).Render(fmt.Sprintf("%s Missing dependency", icon.Get(icon.Fail)))
	body := style.New().Foreground(style.Text).Render(fmt.Sprintf(
		"This address plays through mpv, but '%s' was not found.\nSet %s to its location or install it.",
		dep, style.Bold(key.MPVPath),
	))

	suggestion := ""
	if hint := installHint(); hint != "" {
		suggestion = fmt.Sprintf("\n\nTo install it, try running:\n  %s", style.New().Foreground(style.AccentColor).Bold(true).Render(hint))
	}

	fmt.Println(box.Render(
		lipgloss.JoinVertical(lipgloss.Left,
			title,
			"\n",
			body,
			suggestion,
		),
	))
}
