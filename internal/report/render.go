package report

import "strings"

var (
	heavyRule = strings.Repeat("=", 60)
	lightRule = strings.Repeat("─", 60)
)

const reviewNotice = "⚠ À VÉRIFIER : extraction automatique incomplète"

// Render produces the plain-text form of d from its other fields.
// RenderedText itself is ignored.
func Render(d Document) string {
	var b strings.Builder

	line := func(s string) {
		b.WriteString(s)
		b.WriteByte('\n')
	}
	section := func(title string) {
		line(lightRule)
		line(title)
		line(lightRule)
		line("")
	}

	line(heavyRule)
	line(d.Title)
	line(heavyRule)
	line("Généré le: " + d.GeneratedAt.Format("02/01/2006") + " à " + d.GeneratedAt.Format("15:04"))
	if d.NeedsReview {
		line(reviewNotice)
	}
	line("")

	section("DÉTAILS DU RAPPORT")
	for _, f := range d.Fields {
		line("▪ " + f.Label + ": " + f.Value)
	}
	line("")

	section("TRANSCRIPTION AUDIO")
	line(d.Transcript)
	line("")

	line(lightRule)
	line("Rapport généré automatiquement par Site Reporter")
	line(lightRule)

	return b.String()
}
