// Package ui provides the spinner component.
package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

var (
	spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	spinnerMu     sync.Mutex
	spinnerStop   chan struct{}
	spinnerDone   chan struct{}
	spinnerActive bool
)

// StartSpinner starts an animated spinner with a message. It does nothing in
// quiet mode or when stdout is not a terminal.
//
// Parameters:
//   - message: The message to display next to the spinner
func StartSpinner(message string) {
	spinnerMu.Lock()
	defer spinnerMu.Unlock()

	if spinnerActive || quietMode || !IsInteractive() {
		return
	}

	spinnerActive = true
	spinnerStop = make(chan struct{})
	spinnerDone = make(chan struct{})
	stop, done := spinnerStop, spinnerDone

	go func() {
		defer close(done)
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		i := 0
		for {
			frame := spinnerFrames[i%len(spinnerFrames)]
			fmt.Printf("\r%s %s", StatusInfoStyle.Render(frame), message)
			i++

			select {
			case <-stop:
				// Clear the spinner line
				fmt.Printf("\r%s\r", strings.Repeat(" ", len(message)+4))
				return
			case <-ticker.C:
			}
		}
	}()
}

// StopSpinner stops the current spinner and waits for its line to clear.
func StopSpinner() {
	spinnerMu.Lock()
	defer spinnerMu.Unlock()

	if !spinnerActive {
		return
	}

	close(spinnerStop)
	<-spinnerDone
	spinnerActive = false
}
