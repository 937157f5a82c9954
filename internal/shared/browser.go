package shared

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

var getRuntime = func() string { return runtime.GOOS }

// OpenBrowser opens url in the user's browser for the login flow.
//
// $BROWSER wins when set (it may carry arguments); otherwise the platform opener is used
// on macOS, Linux and Windows.
func OpenBrowser(url string) error {
	cmd, err := browserCommand(url)
	if err != nil {
		return err
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	go cmd.Wait()

	return nil
}

func browserCommand(url string) (*exec.Cmd, error) {
	if custom := strings.Fields(os.Getenv("BROWSER")); len(custom) > 0 {
		return exec.Command(custom[0], append(custom[1:], url)...), nil
	}

	switch rt := getRuntime(); rt {
	case "darwin":
		return exec.Command("open", url), nil
	case "linux", "freebsd", "openbsd":
		return exec.Command("xdg-open", url), nil
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url), nil
	default:
		return nil, fmt.Errorf("%w: no browser opener for %s", ErrServiceUnavailable, rt)
	}
}
