package dialogue

// Slot names for the elicitation checklist. A slot is filled when the
// participant has answered its question; the engine always asks about the
// highest-priority unfilled slot.
const (
	SlotProjectName     = "project-name"
	SlotDescription     = "description"
	SlotStackPreference = "stack-preference"
	SlotReferences      = "references"
	SlotRiskTolerance   = "risk-tolerance"
	SlotFileLayout      = "file-layout"
	SlotSuccessCriteria = "success-criteria"
)

// DefaultSlotOrder is the priority order used when the configuration does
// not override it. Earlier slots are asked first.
func DefaultSlotOrder() []string {
	return []string{
		SlotProjectName,
		SlotDescription,
		SlotStackPreference,
		SlotReferences,
		SlotRiskTolerance,
		SlotFileLayout,
		SlotSuccessCriteria,
	}
}

// cannedQuestions are the fallback phrasings used when the completion
// provider is unreachable. The conversation never stalls on a provider
// outage; it just gets less charming.
var cannedQuestions = map[string]string{
	SlotProjectName:     "What should the project be called?",
	SlotDescription:     "In a sentence or two, what should this project do?",
	SlotStackPreference: "Any preferences for the tech stack?",
	SlotReferences:      "Are there any documents or links I should read? You can attach them here.",
	SlotRiskTolerance:   "How much technical risk is acceptable: move fast, balanced, or conservative?",
	SlotFileLayout:      "Do you have a preferred file or directory layout?",
	SlotSuccessCriteria: "How will we know it works? List the checks that must pass, one per line.",
}

// KnownSlot reports whether the name is part of the slot vocabulary
func KnownSlot(name string) bool {
	_, ok := cannedQuestions[name]
	return ok
}
