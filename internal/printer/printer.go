// Package printer formats boardctl output with color.
package printer

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/inamate/whiteboard/internal/protocol"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
	faint  = color.New(color.Faint)
)

func Success(format string, a ...any) {
	green.Printf("✓ %s", fmt.Sprintf(format, a...))
}

func Info(format string, a ...any) {
	fmt.Printf(format, a...)
}

func Warning(format string, a ...any) {
	yellow.Printf("! %s", fmt.Sprintf(format, a...))
}

// Step prints a step of a multi-step operation.
func Step(format string, a ...any) {
	cyan.Printf("→ %s", fmt.Sprintf(format, a...))
}

// Error prints a titled error with suggestions to stderr and returns a
// plain error for cobra, which is configured not to print it again.
func Error(title string, explanation string, suggestions []string) error {
	red.Fprintf(os.Stderr, "%s\n\n", title)
	if explanation != "" {
		fmt.Fprintf(os.Stderr, "%s\n", explanation)
	}

	if len(suggestions) > 0 {
		fmt.Fprintf(os.Stderr, "\n")
		if len(suggestions) == 1 {
			fmt.Fprintf(os.Stderr, "%s\n", suggestions[0])
		} else {
			fmt.Fprintf(os.Stderr, "Either:\n")
			for i, suggestion := range suggestions {
				fmt.Fprintf(os.Stderr, "  %d. %s\n", i+1, suggestion)
			}
		}
	}

	return fmt.Errorf("%s", title)
}

// Event writes one line describing an inbound relay message.
func Event(w io.Writer, msg protocol.Message) {
	c := eventColor(msg.Type)
	sender := msg.ClientID
	if len(sender) > 8 {
		sender = sender[:8]
	}
	if sender == "" {
		sender = "relay"
	}
	c.Fprintf(w, "%-18s", msg.Type)
	faint.Fprintf(w, " %-8s ", sender)
	fmt.Fprintln(w, summarize(msg))
}

func eventColor(t string) *color.Color {
	switch {
	case t == protocol.TypeError:
		return red
	case protocol.IsCommit(t), t == protocol.TypeInit:
		return green
	case protocol.IsPresence(t):
		return faint
	case t == protocol.TypeUndo, t == protocol.TypeRedo:
		return yellow
	}
	return cyan
}

func summarize(msg protocol.Message) string {
	switch {
	case msg.Type == protocol.TypeInit:
		init, err := protocol.Decode[protocol.InitPayload](msg)
		if err != nil {
			return err.Error()
		}
		return fmt.Sprintf("%d objects, %d notes", len(init.Objects), len(init.StickyNotes))
	case protocol.IsCommit(msg.Type):
		obj, err := protocol.DecodeObject(msg)
		if err != nil {
			return err.Error()
		}
		return fmt.Sprintf("%s %s", obj.Header().Type, obj.Header().ID)
	case msg.Type == protocol.TypeUndo, msg.Type == protocol.TypeRedo:
		hp, err := protocol.Decode[protocol.HistoryPayload](msg)
		if err != nil {
			return err.Error()
		}
		types := make([]string, len(hp.Patches))
		for i, p := range hp.Patches {
			types[i] = p.Type
		}
		return fmt.Sprintf("[%s] raster=%t", strings.Join(types, " "), hp.ImageData != "")
	case msg.Type == protocol.TypeError:
		e, err := protocol.Decode[protocol.ErrorPayload](msg)
		if err != nil {
			return err.Error()
		}
		return e.Message
	}
	return string(msg.Payload)
}
