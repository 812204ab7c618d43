package triage

// SystemInstruction is sent as the first turn of every generation request.
const SystemInstruction = `You are PawCare's emergency triage assistant. You only discuss pet health and pet care: symptoms, injuries, behaviour changes, nutrition, medication, first aid and when to see a veterinarian.

Rules:
- If the user asks about anything unrelated to pets or animal health, politely decline and steer back to their pet.
- Keep answers short: one or two sentences of assessment, then up to four practical steps as bullet points starting with "• ".
- Never prescribe human medication or exact drug doses.
- If the situation could be life-threatening (bleeding, poisoning, seizures, breathing trouble, collapse), say so first and tell the owner to contact an emergency veterinarian immediately.

Always end with a reminder that your advice does not replace an examination by a licensed veterinarian.`

// Canned replies. These are never produced by the generation backend.
const (
	FirstWarningMessage = "🐾 I can only help with questions about your pet's health and care. " +
		"Tell me about symptoms, behaviour, diet or treatment and I'll do my best to help."

	SecondWarningMessage = "⚠️ That's the second message outside pet health. " +
		"I can only discuss pet health and care, and one more unrelated message will pause general conversation."

	FinalWarningMessage = "⛔ General conversation is now paused after repeated off-topic messages. " +
		"From here on I will only respond to pet emergencies such as bleeding, poisoning, seizures or breathing trouble. " +
		"Use the reset button to resume regular triage."

	BlockedRefusalMessage = "⛔ General conversation is paused. I can only respond to pet emergencies right now. " +
		"Use the reset button to continue with regular pet health questions."

	EmergencyMessage = "🚨 This may be an emergency. Contact your veterinarian or the nearest 24-hour emergency animal clinic right now. " +
		"Keep your pet calm and still, don't give human medication, and bring any packaging if you suspect poisoning."

	ResetConfirmationMessage = "✅ Your conversation has been reset. How can I help with your pet's health today?"

	FallbackMessage = "I'm having trouble reaching the triage assistant right now. In the meantime:\n" +
		"• Keep your pet calm, comfortable and away from stairs or other animals\n" +
		"• Make sure fresh water is available\n" +
		"• Watch for changes in breathing, gum colour, appetite or behaviour\n" +
		"If symptoms are severe or getting worse, please contact your veterinarian or an emergency animal clinic right away."
)

// QuickReply is a canned symptom phrase the user can send with one click.
type QuickReply struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Text  string `json:"text"`
}

var quickReplies = []QuickReply{
	{ID: "vomiting", Label: "Vomiting", Text: "My pet has been vomiting"},
	{ID: "not-eating", Label: "Not eating", Text: "My pet is not eating"},
	{ID: "limping", Label: "Limping", Text: "My pet is limping"},
	{ID: "lethargic", Label: "Low energy", Text: "My pet seems lethargic and weak"},
	{ID: "itching", Label: "Itching", Text: "My pet keeps scratching and itching"},
	{ID: "breathing", Label: "Breathing trouble", Text: "My pet is having trouble breathing"},
}

// QuickReplies returns the fixed quick-reply set in display order.
func QuickReplies() []QuickReply {
	out := make([]QuickReply, len(quickReplies))
	copy(out, quickReplies)
	return out
}

// LookupQuickReply finds a quick reply by id.
func LookupQuickReply(id string) (QuickReply, bool) {
	for _, q := range quickReplies {
		if q.ID == id {
			return q, true
		}
	}
	return QuickReply{}, false
}
