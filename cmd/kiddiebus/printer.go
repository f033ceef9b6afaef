package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

type printer struct {
	out       io.Writer
	err       io.Writer
	useColors bool
}

func newPrinter(out, err io.Writer) *printer {
	_, noColor := os.LookupEnv("NO_COLOR")
	return &printer{out: out, err: err, useColors: !noColor && os.Getenv("TERM") != "dumb"}
}

func (p *printer) paint(c *color.Color, format string, args ...any) string {
	msg := fmt.Sprintf(format, args...)
	if !p.useColors {
		return msg
	}
	return c.Sprint(msg)
}

func (p *printer) Success(format string, args ...any) {
	fmt.Fprintln(p.out, p.paint(color.New(color.FgGreen), "✓ "+format, args...))
}

func (p *printer) Info(format string, args ...any) {
	fmt.Fprintln(p.out, p.paint(color.New(color.FgCyan), format, args...))
}

func (p *printer) Warning(format string, args ...any) {
	fmt.Fprintln(p.err, p.paint(color.New(color.FgYellow), "! "+format, args...))
}

func (p *printer) Error(format string, args ...any) {
	fmt.Fprintln(p.err, p.paint(color.New(color.FgRed), "✗ "+format, args...))
}

// Field prints a bold label followed by its value
func (p *printer) Field(label, value string) {
	fmt.Fprintf(p.out, "%s %s\n", p.paint(color.New(color.Bold), "%-10s", label+":"), value)
}
