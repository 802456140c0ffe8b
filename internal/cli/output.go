package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/Wyydra/safemeet/internal/client"
	"github.com/Wyydra/safemeet/internal/core/negotiation"
)

type Formatter struct {
	w io.Writer

	ok    *color.Color
	warn  *color.Color
	fail  *color.Color
	faint *color.Color
	bold  *color.Color
}

func NewFormatter(w io.Writer) *Formatter {
	return &Formatter{
		w:     w,
		ok:    color.New(color.FgGreen),
		warn:  color.New(color.FgYellow),
		fail:  color.New(color.FgRed, color.Bold),
		faint: color.New(color.Faint),
		bold:  color.New(color.Bold),
	}
}

func (f *Formatter) Meeting(m client.Meeting) {
	status := f.ok.Sprint(m.Status)
	if m.Status != "active" {
		status = f.faint.Sprint(m.Status)
	}
	fmt.Fprintf(f.w, "%s  %s\n", f.bold.Sprint(m.MeetCode), status)
	fmt.Fprintf(f.w, "  id:       %s\n", m.ID)
	fmt.Fprintf(f.w, "  creator:  %s (%s)\n", m.CreatedByName, m.CreatedByUserID)
	fmt.Fprintf(f.w, "  created:  %s\n", m.CreatedAt.Local().Format(time.DateTime))
	if m.EndedAt != nil {
		fmt.Fprintf(f.w, "  ended:    %s\n", m.EndedAt.Local().Format(time.DateTime))
	}
	if len(m.Participants) == 0 {
		return
	}
	fmt.Fprintf(f.w, "  participants:\n")
	for _, p := range m.Participants {
		fmt.Fprintf(f.w, "    %s (%s)\n", p.Name, p.UserID)
	}
}

// State prints one line per session transition.
func (f *Formatter) State(state negotiation.State, status string) {
	c := f.faint
	switch state {
	case negotiation.Connected:
		c = f.ok
	case negotiation.MediaError, negotiation.RelayError, negotiation.Disconnected:
		c = f.warn
	}
	line := c.Sprint(string(state))
	if status != "" {
		line += ": " + status
	}
	fmt.Fprintln(f.w, line)
}

func (f *Formatter) Error(msg string) {
	fmt.Fprintln(f.w, f.fail.Sprint("error: ")+msg)
}

func (f *Formatter) Info(msg string) {
	fmt.Fprintln(f.w, msg)
}

func (f *Formatter) Success(msg string) {
	fmt.Fprintln(f.w, f.ok.Sprint(msg))
}

func (f *Formatter) Warning(msg string) {
	fmt.Fprintln(f.w, f.warn.Sprint(msg))
}
