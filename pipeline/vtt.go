package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/poiesic/mediamind/core"
)

// FormatVTT renders a transcript as a WebVTT document, one cue per
// timestamped utterance.
func FormatVTT(t *core.Transcript) string {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")
	for _, seg := range t.Segments {
		fmt.Fprintf(&b, "%s --> %s\n%s\n\n",
			vttTimestamp(seg.Start),
			vttTimestamp(seg.End),
			strings.TrimSpace(seg.Text))
	}
	return b.String()
}

// vttTimestamp formats seconds as HH:MM:SS.mmm.
func vttTimestamp(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second))
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	ms := int(d.Milliseconds()) % 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}
