package tui

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
)

// Choice is one option of a selection prompt
type Choice struct {
	Value       string
	Description string
}

// PromptForSelect displays a selection prompt and returns the chosen value
func PromptForSelect(message string, choices []Choice) (string, error) {
	if len(choices) == 0 {
		return "", fmt.Errorf("no options provided")
	}

	options := make([]huh.Option[string], len(choices))
	for i, c := range choices {
		label := c.Value
		if c.Description != "" {
			label = fmt.Sprintf("%-9s %s", c.Value, c.Description)
		}
		options[i] = huh.NewOption(label, c.Value)
	}

	selected := choices[0].Value
	selectField := huh.NewSelect[string]().
		Title(message).
		Options(options...).
		Value(&selected)

	if err := huh.NewForm(huh.NewGroup(selectField)).Run(); err != nil {
		return "", fmt.Errorf("prompt failed: %w", err)
	}
	return selected, nil
}

// IsInteractive returns true if stdin is a terminal (not piped)
func IsInteractive() bool {
	fileInfo, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

// ShouldPrompt returns true unless running in CI or without a terminal
func ShouldPrompt() bool {
	for _, envVar := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "BUILDKITE"} {
		if os.Getenv(envVar) != "" {
			return false
		}
	}
	return IsInteractive()
}
