// Package ui provides interactive input components.
package ui

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// stdin is the prompt input; replaced in tests.
var stdin io.Reader = os.Stdin

// IsInteractive reports whether stdin and stdout are both terminals.
func IsInteractive() bool {
	return isTerminal(os.Stdin) && isTerminal(os.Stdout)
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Prompt displays a prompt and reads user input.
//
// Parameters:
//   - message: The prompt message to display
//
// Returns:
//   - string: The user's input
//   - error: Any error that occurred
func Prompt(message string) (string, error) {
	fmt.Printf("%s ", InfoStyle.Render(message))

	reader := bufio.NewReader(stdin)
	input, err := reader.ReadString('\n')
	if err != nil && (err != io.EOF || input == "") {
		return "", err
	}

	return strings.TrimSpace(input), nil
}

// PromptConfirm displays a yes/no confirmation prompt.
//
// Parameters:
//   - message: The prompt message to display
//   - defaultYes: Whether the default is yes (true) or no (false)
//
// Returns:
//   - bool: True if user confirmed, false otherwise
//   - error: Any error that occurred
func PromptConfirm(message string, defaultYes bool) (bool, error) {
	suffix := "[y/N]"
	if defaultYes {
		suffix = "[Y/n]"
	}

	input, err := Prompt(fmt.Sprintf("%s %s", message, suffix))
	if err != nil {
		return false, err
	}

	input = strings.ToLower(strings.TrimSpace(input))

	if input == "" {
		return defaultYes, nil
	}

	return input == "y" || input == "yes", nil
}

// ConfirmGate returns a confirmation function for destructive operations.
// With assumeYes every prompt is accepted. Without a terminal the prompt
// cannot be answered, so it is declined.
//
// Parameters:
//   - assumeYes: Accept without asking (--yes)
//   - interactive: Whether a user can answer prompts
//
// Returns:
//   - func(string) (bool, error): The gate, suitable as a controller.ConfirmFunc
func ConfirmGate(assumeYes, interactive bool) func(string) (bool, error) {
	return func(prompt string) (bool, error) {
		if assumeYes {
			return true, nil
		}
		if !interactive {
			PrintWarning("%s Refusing without a terminal; pass --yes to confirm.", prompt)
			return false, nil
		}
		return PromptConfirm(prompt, false)
	}
}
