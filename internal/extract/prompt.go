package extract

import (
	"encoding/json"
	"strings"

	"github.com/MrWong99/sitereport/internal/template"
)

// systemPrompt is sent with every extraction request.
const systemPrompt = `Tu es un assistant IA spécialisé dans l'extraction d'informations de rapports de chantier en français.
Tu dois extraire les informations pertinentes d'une transcription audio et les structurer selon un schéma donné.

Règles importantes:
- Extrais uniquement les informations explicitement mentionnées dans la transcription
- Si une information n'est pas mentionnée, laisse le champ vide
- Pour les dates, utilise le format JJ/MM/AAAA
- Pour les heures, utilise le format HH:MM
- Sois précis et factuel
- Réponds UNIQUEMENT avec un objet JSON valide, sans texte additionnel`

// buildUserPrompt renders the transcript and the template schema. The schema
// is a JSON object mapping each field name to its hint, in declared order.
func buildUserPrompt(def template.Definition, transcript string) string {
	var b strings.Builder
	b.WriteString("Transcription audio:\n")
	b.WriteString(transcript)
	b.WriteString("\n\nSchéma des champs à extraire:\n")
	b.WriteString(schemaJSON(def))
	b.WriteString(`

Extrais les informations de la transcription et retourne un objet JSON avec ces champs.
Pour chaque champ, extrais la valeur appropriée de la transcription.
Si une valeur n'est pas mentionnée, mets une chaîne vide "".

Réponds UNIQUEMENT avec l'objet JSON, sans markdown ni texte additionnel.`)
	return b.String()
}

// schemaJSON encodes name → hint pairs as an indented JSON object. Maps would
// lose the declared field order, so the object is written by hand.
func schemaJSON(def template.Definition) string {
	var b strings.Builder
	b.WriteString("{\n")
	for i, f := range def.Fields {
		b.WriteString("  ")
		b.Write(marshalString(f.Name))
		b.WriteString(": ")
		b.Write(marshalString(f.Hint))
		if i < len(def.Fields)-1 {
			b.WriteByte(',')
		}
		b.WriteByte('\n')
	}
	b.WriteString("}")
	return b.String()
}

func marshalString(s string) []byte {
	var b strings.Builder
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return []byte(strings.TrimSuffix(b.String(), "\n"))
}
