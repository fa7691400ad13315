package scriptwriter

import (
	"fmt"
	"strings"

	"nightfeed/internal/detect"
)

func systemPrompt(targetMinutes int) string {
	if targetMinutes <= 0 {
		targetMinutes = 5
	}
	return fmt.Sprintf(
		"You write a nightly games and tech news briefing of roughly %d minutes. "+
			"Cover the provided signals in order, lead with the most salient, and keep a conversational radio tone. "+
			"Respond with the script text only.", targetMinutes)
}

func renderBundlePrompt(bundle detect.Bundle) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Signals for %s:\n", bundle.Date)
	for i, sig := range bundle.Signals {
		fmt.Fprintf(&b, "%d. [%s] %s (source: %s, salience: %.2f", i+1, sig.Reason, sig.Record.Title, sig.Record.Source, sig.Salience)
		if sig.Delta != nil {
			fmt.Fprintf(&b, ", delta: %+.1f", *sig.Delta)
		}
		b.WriteString(")")
		if sig.Record.URL != "" {
			fmt.Fprintf(&b, " %s", sig.Record.URL)
		}
		b.WriteString("\n")
	}
	return b.String()
}
