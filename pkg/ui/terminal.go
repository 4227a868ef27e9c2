// Package ui renders command line output: colored status lines, lipgloss
// tables for profiles and comparisons, and warm-up progress.
package ui

import (
	"fmt"
	"io"
	"os"
)

// ASCIILogo is printed by the serve command on start
const ASCIILogo = `
    ╔══════════════════════════════════════════════════════════════╗
    ║  ╦╔╗╔╔═╗╔╦╗╔═╗╦  ╦ ╦╔╦╗╦╔═╗╔═╗                                ║
    ║  ║║║║╚═╗ ║ ╠═╣║  ╚╦╝ ║ ║║  ╚═╗                                ║
    ║  ╩╝╚╝╚═╝ ╩ ╩ ╩╩═╝ ╩  ╩ ╩╚═╝╚═╝                                ║
    ║        PROFILE ANALYTICS CACHE                                ║
    ╚══════════════════════════════════════════════════════════════╝
`

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

// colorize returns a function that wraps text with ANSI color codes
func colorize(colorString string) func(string) string {
	return func(text string) string {
		return fmt.Sprintf(colorString, text)
	}
}

// Printer writes status lines, colored unless disabled
type Printer struct {
	w     io.Writer
	color bool
}

// NewPrinter creates a Printer writing to w
func NewPrinter(w io.Writer, color bool) *Printer {
	return &Printer{w: w, color: color}
}

// Stdout returns a Printer for standard output that respects NO_COLOR
func Stdout() *Printer {
	_, noColor := os.LookupEnv("NO_COLOR")
	return NewPrinter(os.Stdout, !noColor)
}

// Writer returns the underlying writer
func (p *Printer) Writer() io.Writer {
	return p.w
}

func (p *Printer) paint(fn func(string) string, s string) string {
	if !p.color {
		return s
	}
	return fn(s)
}

// Logo prints the ASCII logo
func (p *Printer) Logo() {
	fmt.Fprint(p.w, p.paint(Cyan, ASCIILogo))
}

// Error prints an error message in red, followed by the first arg if any
func (p *Printer) Error(msg string, args ...interface{}) {
	fmt.Fprintln(p.w, p.paint(Red, withDetail(msg, args)))
}

// Success prints a success message in green
func (p *Printer) Success(msg string) {
	fmt.Fprintln(p.w, p.paint(Green, msg))
}

// Info prints a label and value
func (p *Printer) Info(label string, value string) {
	fmt.Fprintf(p.w, "%s: %s\n", p.paint(Cyan, label), p.paint(Yellow, value))
}

// Warning prints a warning message in yellow
func (p *Printer) Warning(msg string, args ...interface{}) {
	fmt.Fprintln(p.w, p.paint(Yellow, withDetail(msg, args)))
}

// Highlight prints a message in magenta
func (p *Printer) Highlight(msg string) {
	fmt.Fprintln(p.w, p.paint(Magenta, msg))
}

// Println prints s unchanged
func (p *Printer) Println(s string) {
	fmt.Fprintln(p.w, s)
}

func withDetail(msg string, args []interface{}) string {
	if len(args) > 0 {
		return msg + ": " + fmt.Sprintf("%v", args[0])
	}
	return msg
}
