package coach

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are a messaging assistant. You draft replies on the user's behalf.
Hard rules:
- You write messages to the other person while impersonating the user.
- Respectful, no pressure, no manipulation, no toxicity.
- Natural contemporary language, no cringe pickup lines or theatrics.
- Follow the user's portrait: their style, boundaries and banned phrases.
Reply format:
1) Best reply (1 option, 1-2 lines)
2) Alternatives (3-5 options, also short)
3) Next question (1-2)
4) What to avoid (if relevant)`

const explainSystemSuffix = "\nWhen asked for an explanation, keep it short and to the point."

// learningHint converts the effective weight vector into a compact
// steering instruction for the prompt.
func learningHint(u *User, rel *Relationship) (summary, instruction string) {
	weights := EffectiveWeights(u, rel)
	var inst []string
	if weights.Warmth >= 0.75 {
		inst = append(inst, "warmer")
	}
	if weights.Brevity >= 0.7 {
		inst = append(inst, "shorter")
	}
	if weights.Humor >= 0.5 {
		inst = append(inst, "light humor")
	}
	if weights.Curiosity >= 0.7 {
		inst = append(inst, "more interest/questions")
	}
	if weights.Flirt >= 0.4 {
		inst = append(inst, "a bit of flirtation")
	}
	if weights.InviteRate >= 0.3 {
		inst = append(inst, "ease toward a meeting")
	}
	if len(inst) == 0 {
		return WeightsSummary(weights), "keep the balance"
	}
	return WeightsSummary(weights), strings.Join(inst, "; ")
}

func modeInstruction(mode Mode) string {
	switch mode {
	case ModeShort:
		return "Make the main reply short, maximally to the point."
	case ModeFunny:
		return "Add light, fitting humor, nothing cringe."
	case ModeBolder:
		return "Make it more confident and slightly more flirtatious, without pressure."
	case ModeInvite:
		return "Gently steer toward a call or a meeting, softly."
	default:
		return "Keep the balance."
	}
}

func pacingHint(p Pacing) string {
	if p == PacingFast {
		return "Pace: fast. You can close distance more actively and move toward a meeting sooner."
	}
	return "Pace: warm. Keep comfort, curiosity and continuation; micro-steps without pressure; meetings only at S4 or on very clear signals."
}

func prefDeltaLine(rel *Relationship) string {
	if rel == nil {
		return "RelΔ: 0"
	}
	d := rel.PrefDelta
	if d == (Weights{}) {
		return "RelΔ: 0"
	}
	return fmt.Sprintf("RelΔ: W%g, B%g, H%g, C%g, F%g, I%g",
		d.Warmth, d.Brevity, d.Humor, d.Curiosity, d.Flirt, d.InviteRate)
}

func historyText(rel *Relationship) string {
	if rel == nil || len(rel.History) == 0 {
		return "none"
	}
	lines := make([]string, 0, len(rel.History))
	for _, h := range rel.History {
		who := "Me"
		if h.Speaker == SpeakerThem {
			who = "Them"
		}
		lines = append(lines, who+": "+h.Text)
	}
	return strings.Join(lines, "\n")
}

func recentNotesText(rel *Relationship) string {
	if rel == nil || len(rel.Notes) == 0 {
		return "none"
	}
	notes := rel.Notes
	if len(notes) > 6 {
		notes = notes[len(notes)-6:]
	}
	lines := make([]string, 0, len(notes))
	for i, n := range notes {
		lines = append(lines, fmt.Sprintf("• %d) %s", i+1, n.Text))
	}
	return strings.Join(lines, "\n")
}

func buildSuggestionPrompt(p Persona, u *User, rel *Relationship, incoming string, mode Mode) string {
	summary, instruction := learningHint(u, rel)
	weights := EffectiveWeights(u, rel)

	var b strings.Builder
	fmt.Fprintf(&b, "USER PORTRAIT:\n%s\n\n", p.render())
	fmt.Fprintf(&b, "ADAPTATION FROM STATS:\n%s\nInstruction: %s\n\n", summary, instruction)
	fmt.Fprintf(&b, "Context on the other person:\n%s\n\n", rel.ContextNote)
	fmt.Fprintf(&b, "Notes on them (recent):\n%s\n\n", recentNotesText(rel))
	fmt.Fprintf(&b, "Pacing: %s\nStage: %s (%s)\nRule: %s\n\n", u.Settings.Pacing, rel.Stage, rel.Stage.Label(), pacingHint(u.Settings.Pacing))
	fmt.Fprintf(&b, "Weight preferences: %s | %s\n\n", WeightsSummary(weights), prefDeltaLine(rel))
	fmt.Fprintf(&b, "Goal: %s\nTone: %s\n\n", p.Goal, p.Tone)
	fmt.Fprintf(&b, "A/B MODE FOR THIS BATCH:\n%s — %s\n\n", mode, modeInstruction(mode))
	fmt.Fprintf(&b, "History:\n%s\n\n", historyText(rel))
	fmt.Fprintf(&b, "Their message:\n%s\n\n", incoming)
	b.WriteString("Generate the reply in the format from system.")
	return b.String()
}

func buildTweakPrompt(p Persona, u *User, rel *Relationship, last *LastInteraction, instruction string) string {
	summary, hint := learningHint(u, rel)
	weights := EffectiveWeights(u, rel)

	var b strings.Builder
	fmt.Fprintf(&b, "PORTRAIT:\n%s\n\n", p.render())
	fmt.Fprintf(&b, "ADAPTATION:\n%s\nInstruction: %s\n\n", summary, hint)
	fmt.Fprintf(&b, "Pacing: %s | %s\n", u.Settings.Pacing, pacingHint(u.Settings.Pacing))
	fmt.Fprintf(&b, "Weight preferences: %s | %s\n\n", WeightsSummary(weights), prefDeltaLine(rel))
	fmt.Fprintf(&b, "Their message:\n%s\n\n", last.IncomingText)
	fmt.Fprintf(&b, "Your previous options:\n%s\n\n", last.SuggestionsText)
	fmt.Fprintf(&b, "Task:\n%s\n\n", instruction)
	b.WriteString("Answer in the standard format (except for explanations: explanation only).")
	return b.String()
}

func buildAnalysisPrompt(p Persona, u *User, rel *Relationship, incoming string) string {
	summary, hint := learningHint(u, rel)

	var b strings.Builder
	b.WriteString("Analyze their message and the situation. Provide:\n")
	b.WriteString("1) What they probably meant (2-3 hypotheses)\n")
	b.WriteString("2) Their interest level (low/medium/high) and why\n")
	b.WriteString("3) 3 reply strategies (short)\n")
	b.WriteString("4) 3 concrete reply options (in the user's style)\n")
	b.WriteString("5) What to avoid\n\n")
	fmt.Fprintf(&b, "PORTRAIT:\n%s\n", p.render())
	fmt.Fprintf(&b, "ADAPTATION:\n%s | %s\n\n", summary, hint)
	fmt.Fprintf(&b, "Context:\n%s\nNotes:\n%s\nHistory:\n%s\n\n", rel.ContextNote, recentNotesText(rel), historyText(rel))
	fmt.Fprintf(&b, "Their message:\n%s", incoming)
	return b.String()
}

// TweakKind names the variants of "redo the last batch".
type TweakKind string

const (
	TweakShort   TweakKind = "short"
	TweakFunny   TweakKind = "funny"
	TweakBolder  TweakKind = "bolder"
	TweakInvite  TweakKind = "invite"
	TweakWhy     TweakKind = "why"
	TweakImprove TweakKind = "improve"
)

func ParseTweakKind(s string) (TweakKind, error) {
	switch TweakKind(strings.ToLower(strings.TrimSpace(s))) {
	case TweakShort:
		return TweakShort, nil
	case TweakFunny:
		return TweakFunny, nil
	case TweakBolder:
		return TweakBolder, nil
	case TweakInvite:
		return TweakInvite, nil
	case TweakWhy:
		return TweakWhy, nil
	case TweakImprove, "":
		return TweakImprove, nil
	default:
		return "", fmt.Errorf("unknown tweak: %q", s)
	}
}

// tweakInstruction maps a tweak to its prompt instruction and the mode
// the regenerated batch should be attributed to. "why" and "improve"
// keep the previous mode.
func tweakInstruction(kind TweakKind, previous Mode) (string, Mode) {
	if previous == "" {
		previous = ModeBase
	}
	switch kind {
	case TweakShort:
		return "Make the options SHORTER, maximally to the point.", ModeShort
	case TweakFunny:
		return "Make the options FUNNIER: light humor, nothing cringe.", ModeFunny
	case TweakBolder:
		return "Make the options BOLDER: more confident, a bit more flirtatious, no pressure.", ModeBolder
	case TweakInvite:
		return "Make options that gently steer toward a meeting or a call (3 invitation variants).", ModeInvite
	case TweakWhy:
		return "Briefly explain the logic: why the best option wins and which signals in their message point to it.", previous
	default:
		return "Improve the options.", previous
	}
}

// debugFooter renders the diagnostic trailer appended to suggestion
// output when the user enabled debug. ParseSuggestions strips it back
// out, so committing a suggestion never leaks it into history.
func debugFooter(u *User, rel *Relationship, mode Mode) string {
	if !u.Debug {
		return ""
	}
	weights := EffectiveWeights(u, rel)
	return fmt.Sprintf("\n%s pacing=%s, stage=%s, mode=%s, weights=%s",
		debugFooterSeparator, u.Settings.Pacing, rel.Stage, mode, WeightsSummary(weights))
}
