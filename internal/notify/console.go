package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"stock-sentinel/internal/models"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

// ConsoleNotifier prints notifications to a terminal.
type ConsoleNotifier struct {
	out          io.Writer
	colorEnabled bool
	bellEnabled  bool
	mu           sync.Mutex
}

// NewConsoleNotifier creates a console channel writing to out, or stdout if nil.
func NewConsoleNotifier(out io.Writer, colorEnabled bool) *ConsoleNotifier {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleNotifier{out: out, colorEnabled: colorEnabled}
}

// SetBellEnabled enables or disables the terminal bell on critical alerts.
func (c *ConsoleNotifier) SetBellEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bellEnabled = enabled
}

// Name returns the name of the notifier.
func (c *ConsoleNotifier) Name() string {
	return "console"
}

// IsEnabled returns whether the notifier is enabled.
func (c *ConsoleNotifier) IsEnabled() bool {
	return true
}

// Send writes the notification.
func (c *ConsoleNotifier) Send(ctx context.Context, n Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bellEnabled && n.Severity == models.SeverityCritical {
		fmt.Fprint(c.out, "\a")
	}
	_, err := fmt.Fprintln(c.out, FormatConsole(n, c.colorEnabled))
	return err
}

// FormatConsole renders a notification for the terminal.
func FormatConsole(n Notification, colorEnabled bool) string {
	var b strings.Builder

	ts := n.Timestamp.Format("15:04:05")
	header := fmt.Sprintf("[%s] %s %s", ts, severityIcon(n.Severity), n.Title)
	if colorEnabled {
		header = severityColor(n.Severity) + colorBold + header + colorReset
	}
	b.WriteString(header)

	if n.Message != "" {
		for _, line := range strings.Split(n.Message, "\n") {
			b.WriteString("\n  ")
			b.WriteString(line)
		}
	}
	return b.String()
}

func severityColor(s models.AlertSeverity) string {
	switch s {
	case models.SeverityCritical:
		return colorRed
	case models.SeverityWarning:
		return colorYellow
	default:
		return colorCyan
	}
}
