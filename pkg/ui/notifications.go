package ui

import (
	"fmt"
	"os/exec"
	"runtime"
)

// NotificationSender delivers a desktop notification
type NotificationSender interface {
	Send(title, message string) error
}

// LinuxNotificationSender sends notifications on Linux using notify-send
type LinuxNotificationSender struct{}

func (l *LinuxNotificationSender) Send(title, message string) error {
	return exec.Command("notify-send", title, message).Run()
}

// MacOSNotificationSender sends notifications on macOS using osascript
type MacOSNotificationSender struct{}

func (m *MacOSNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`display notification %q with title %q`, message, title)
	return exec.Command("osascript", "-e", script).Run()
}

// Notifier echoes notifications to a Printer and, where supported, the desktop
type Notifier struct {
	printer *Printer
	sender  NotificationSender
}

// NewNotifier picks the desktop sender for the current platform
func NewNotifier(p *Printer) *Notifier {
	var sender NotificationSender
	switch runtime.GOOS {
	case "linux":
		sender = &LinuxNotificationSender{}
	case "darwin":
		sender = &MacOSNotificationSender{}
	}
	return NewNotifierWithSender(p, sender)
}

// NewNotifierWithSender uses sender, which may be nil for console only
func NewNotifierWithSender(p *Printer, sender NotificationSender) *Notifier {
	return &Notifier{printer: p, sender: sender}
}

// Success reports a finished operation
func (n *Notifier) Success(title, message string) {
	n.printer.Success(title + ": " + message)
	n.send(title, message)
}

// Error reports a failed operation
func (n *Notifier) Error(title, message string) {
	n.printer.Error(title, message)
	n.send(title, message)
}

func (n *Notifier) send(title, message string) {
	if n.sender != nil {
		// desktop delivery is best effort
		_ = n.sender.Send(title, message)
	}
}
