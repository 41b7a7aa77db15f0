// Package open launches files and URLs with the system handler or a chosen application.
package open

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/streamctl/streamctl/constant"
)

// Command builds the command that opens input. An empty app means the system handler.
func Command(input, app string) (*exec.Cmd, error) {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case constant.Windows:
		if app == "" {
			rundll := filepath.Join(os.Getenv("SYSTEMROOT"), "System32", "rundll32.exe")
			cmd = exec.Command(rundll, "url.dll,FileProtocolHandler", input)
		} else {
			// 'start' treats '&' as a command separator
			cmd = exec.Command("cmd", "/C", "start", "", app, strings.ReplaceAll(input, "&", "^&"))
		}
	case constant.Darwin:
		if app == "" {
			cmd = exec.Command("open", input)
		} else {
			cmd = exec.Command("open", "-a", app, input)
		}
	case constant.Linux:
		if app == "" {
			cmd = exec.Command("xdg-open", input)
		} else {
			cmd = exec.Command(app, input)
		}
	case constant.Android:
		if app == "" {
			cmd = exec.Command("termux-open", input)
		} else {
			cmd = exec.Command("termux-open", "--choose", input)
		}
	default:
		return nil, fmt.Errorf("unsupported OS: %s", runtime.GOOS)
	}

	return cmd, nil
}

// Start opens input asynchronously.
func Start(input, app string) error {
	cmd, err := Command(input, app)
	if err != nil {
		return err
	}
	return cmd.Start()
}

// Run opens input and waits for the handler to exit.
func Run(input, app string) error {
	cmd, err := Command(input, app)
	if err != nil {
		return err
	}
	return cmd.Run()
}
