package tui

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// copyText copies text to the system clipboard.
func copyText(text string) error {
	cmd := detectClipboardCommand(exec.LookPath)
	if cmd == "" {
		return fmt.Errorf("no clipboard command available")
	}

	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return fmt.Errorf("invalid clipboard command")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := exec.CommandContext(ctx, parts[0], parts[1:]...)
	c.Stdin = strings.NewReader(text)

	return c.Run()
}

// detectClipboardCommand returns the first clipboard command found on PATH.
func detectClipboardCommand(lookPath func(string) (string, error)) string {
	// Wayland
	if _, err := lookPath("wl-copy"); err == nil {
		return "wl-copy"
	}

	// X11
	if _, err := lookPath("xclip"); err == nil {
		return "xclip -selection clipboard"
	}
	if _, err := lookPath("xsel"); err == nil {
		return "xsel --clipboard --input"
	}

	return ""
}

// marshalYAML renders a session for the clipboard.
func marshalYAML(v any) (string, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
