package fetch

import (
	"io"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// progressWriter prints a carriage-return progress line whenever the
// completed percentage changes.
type progressWriter struct {
	w           io.Writer
	done        int64
	total       int64
	lastPercent int
}

func newProgressWriter(w io.Writer, offset, total int64) *progressWriter {
	return &progressWriter{w: w, done: offset, total: total, lastPercent: -1}
}

func (p *progressWriter) Write(b []byte) (int, error) {
	p.done += int64(len(b))
	if p.total > 0 {
		percent := int(p.done * 100 / p.total)
		if percent != p.lastPercent {
			printer.Fprintf(p.w, "\rDownloading... %d%% (%d / %d bytes)", percent, p.done, p.total)
			p.lastPercent = percent
		}
	}
	return len(b), nil
}

func (p *progressWriter) finish() {
	if p.lastPercent >= 0 {
		printer.Fprintln(p.w)
	}
}
