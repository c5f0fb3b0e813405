package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"

	session "github.com/koscakluka/ema-live/core"
	"github.com/koscakluka/ema-live/core/conversations"
)

const defaultWidth = 80

// labelWidth fits the longest role label plus the separating space.
const labelWidth = len("assistant") + 1

var (
	systemStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF")).Italic(true)
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#38BDF8"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#A78BFA"))
	errorStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#EF4444"))
)

// printer writes conversation lines to the terminal. Session callbacks can
// arrive from several goroutines so every write is serialized.
type printer struct {
	mu    sync.Mutex
	out   io.Writer
	width int
}

func newPrinter(out io.Writer, width int) *printer {
	if width <= labelWidth {
		width = defaultWidth
	}
	return &printer{out: out, width: width}
}

func roleStyle(role conversations.Role) lipgloss.Style {
	switch role {
	case conversations.RoleUser:
		return userStyle
	case conversations.RoleAssistant:
		return assistantStyle
	default:
		return systemStyle
	}
}

// format lays a message out as a fixed width role label followed by the text
// wrapped to the printer width, continuation lines hanging under the text.
func (p *printer) format(role conversations.Role, text string) string {
	label := roleStyle(role).Render(fmt.Sprintf("%-*s", labelWidth, string(role)))

	wrapped := wordwrap.String(strings.TrimSpace(text), p.width-labelWidth)
	first, rest, _ := strings.Cut(wrapped, "\n")
	if rest == "" {
		return label + first
	}
	return label + first + "\n" + indent.String(rest, uint(labelWidth))
}

func (p *printer) println(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, line)
}

func (p *printer) Message(message conversations.Message) {
	p.println(p.format(message.Role, message.Text))
}

// State only prints failures, the transition itself is already announced
// through the system message.
func (p *printer) State(state session.ConnectionState, err error) {
	if state != session.StateError || err == nil {
		return
	}
	p.println(errorStyle.Render("error ") + wordwrap.String(err.Error(), p.width-len("error ")))
}

func (p *printer) Transcript(transcript conversations.Transcript) {
	p.println(systemStyle.Render(fmt.Sprintf("session %s (%s - %s)",
		transcript.SessionID,
		transcript.StartedAt.Format("2006-01-02 15:04:05"),
		transcript.EndedAt.Format("15:04:05"),
	)))
	for _, message := range transcript.Messages {
		p.Message(message)
	}
}

func (p *printer) Infof(format string, args ...any) {
	p.println(systemStyle.Render(fmt.Sprintf(format, args...)))
}
