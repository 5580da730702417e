package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// printer writes human readable command output.
type printer struct {
	w io.Writer
}

func newPrinter(w io.Writer) *printer {
	return &printer{w: w}
}

func (p *printer) success(format string, a ...any) {
	fmt.Fprintf(p.w, "%s %s\n", color.GreenString("✓"), fmt.Sprintf(format, a...))
}

func (p *printer) hint(format string, a ...any) {
	fmt.Fprintf(p.w, "%s %s\n", color.CyanString("→"), fmt.Sprintf(format, a...))
}

func (p *printer) field(name string, value any) {
	fmt.Fprintf(p.w, "  %-20s %v\n", name+":", value)
}

func (p *printer) line(format string, a ...any) {
	fmt.Fprintf(p.w, format+"\n", a...)
}

// emphasis highlights user supplied values such as keys and domain names.
func emphasis(s string) string {
	return color.YellowString(s)
}

// dim renders placeholders for absent values.
func dim(s string) string {
	return color.HiBlackString(s)
}
