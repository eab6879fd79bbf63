package template

// Template IDs of the built-in catalog.
const (
	IDProblemeDecouverte = "probleme_decouverte"
	IDTourSecurite       = "tour_securite"
	IDTacheAssignee      = "tache_assignee"
	IDRapportGenerique   = "rapport_generique"
)

// Builtin returns the built-in French construction-site catalog. The result is
// a fresh slice on every call.
func Builtin() []Definition {
	return []Definition{
		{
			ID:       IDProblemeDecouverte,
			Label:    "RAPPORT D'INCIDENT - Problème Découvert",
			Priority: 1,
			Keywords: []string{"problème", "problem", "incident", "souci", "défaillance", "panne", "fuite", "casse"},
			Fields: []FieldSpec{
				{Name: "Nom du chantier", Hint: "nom du chantier ou projet si mentionné"},
				{Name: "Nom de l'incident", Required: true, Hint: "titre ou nom court de l'incident"},
				{Name: "Emetteur du signalement", Hint: "nom de la personne qui signale l'incident"},
				{Name: "Date de découverte", Required: true, Kind: KindDate, Hint: "date de découverte de l'incident (format JJ/MM/AAAA)"},
				{Name: "Heure de découverte", Kind: KindTime, Hint: "heure de découverte de l'incident (format HH:MM)"},
				{Name: "Adresse", Hint: "adresse ou localisation précise de l'incident"},
				{Name: "Nature de l'incident", Hint: "type ou catégorie de l'incident (électricité, plomberie, structure, etc.)"},
				{Name: "Description de l'incident", Required: true, Hint: "description détaillée de l'incident observé"},
				{Name: "Risques identifiés", Hint: "risques potentiels liés à cet incident"},
				{Name: "Actions à réaliser", Hint: "actions correctives ou mesures à prendre"},
				{Name: "Niveau d'urgence", Required: true, Hint: "niveau d'urgence (Faible/Moyen/Élevé/Critique)"},
				{Name: "Personnes prévenues", Hint: "liste des personnes ou services informés"},
			},
		},
		{
			ID:       IDTourSecurite,
			Label:    "RAPPORT DE SÉCURITÉ - Tour de Chantier",
			Priority: 2,
			Keywords: []string{"tour", "sécurité", "security", "inspection", "vendredi", "friday", "fissure", "béton"},
			Fields: []FieldSpec{
				{Name: "Date", Required: true, Kind: KindDate, Hint: "date mentionnée (format JJ/MM/AAAA)"},
				{Name: "Heure", Kind: KindTime, Hint: "heure mentionnée si disponible (format HH:MM)"},
				{Name: "Opérateur", Hint: "nom et fonction de la personne qui réalise l'inspection"},
				{Name: "Zone inspectée", Required: true, Hint: "bâtiment, étage, ou zone inspectée"},
				{Name: "Observations", Required: true, Hint: "résumé des observations principales"},
				{Name: "Non-conformités", Hint: "problèmes détectés ou 'Aucune' si tout va bien"},
				{Name: "Actions correctives", Hint: "actions recommandées pour corriger les non-conformités"},
			},
		},
		{
			ID:       IDTacheAssignee,
			Label:    "RAPPORT D'AFFECTATION - Tâche Assignée",
			Priority: 3,
			Keywords: []string{"tâche", "task", "assigné", "assigned", "mission", "travail"},
			Fields: []FieldSpec{
				{Name: "Date", Required: true, Kind: KindDate, Hint: "date mentionnée (format JJ/MM/AAAA)"},
				{Name: "Heure", Kind: KindTime, Hint: "heure mentionnée si disponible (format HH:MM)"},
				{Name: "Opérateur", Hint: "nom et fonction de la personne qui assigne la tâche"},
				{Name: "Tâche", Required: true, Hint: "nom ou description de la tâche"},
				{Name: "Assigné à", Required: true, Hint: "personne ou équipe assignée"},
				// A deadline is only meaningful when stated, so it stays free text
				// instead of defaulting to the reference date.
				{Name: "Échéance", Hint: "date limite si mentionnée"},
				{Name: "Priorité", Hint: "niveau de priorité (Faible/Normale/Élevée/Urgente)"},
				{Name: "Description", Hint: "détails de la tâche"},
			},
		},
		{
			ID:       IDRapportGenerique,
			Label:    "RAPPORT DE CHANTIER - Générique",
			Priority: 100,
			Fields: []FieldSpec{
				{Name: "Date", Required: true, Kind: KindDate, Hint: "date mentionnée (format JJ/MM/AAAA)"},
				{Name: "Heure", Kind: KindTime, Hint: "heure mentionnée si disponible (format HH:MM)"},
				{Name: "Opérateur", Hint: "nom et fonction de la personne si mentionnés"},
				{Name: "Problème", Hint: "problème ou situation décrite"},
				{Name: "Domaine", Hint: "zone ou domaine concerné"},
				{Name: "Urgence", Hint: "niveau d'urgence estimé"},
				{Name: "Plan d'action", Hint: "actions à prendre"},
			},
		},
	}
}

// BuiltinRegistry returns a Registry over [Builtin]. It panics if the
// built-in catalog is invalid, which is covered by tests.
func BuiltinRegistry() *Registry {
	r, err := NewRegistry(Builtin())
	if err != nil {
		panic("template: invalid built-in catalog: " + err.Error())
	}
	return r
}
