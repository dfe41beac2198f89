package coach

// ApplyOutcome nudges the user's global weights by small fixed deltas
// conditioned on the outcome and the relationship stage. It never
// touches the relationship's PrefDelta. Early, low-investment ghosts
// (stage S1, at most one message sent) are penalized lightly to avoid
// over-reacting to noise; established-thread ghosts penalize boldness
// and invites harder while nudging toward warmth and brevity.
func ApplyOutcome(u *User, outcome Outcome, stage Stage, sentCountInThread int) {
	if !u.LearningEnabled {
		return
	}
	w := &u.Weights

	switch outcome {
	case OutcomeStrongReplied:
		w.nudge(DimWarmth, 0.03)
		w.nudge(DimCuriosity, 0.03)
		w.nudge(DimBrevity, -0.01)
		if stage == StageS3 || stage == StageS4 {
			w.nudge(DimInviteRate, 0.005)
		}
	case OutcomeReplied:
		w.nudge(DimWarmth, 0.015)
		w.nudge(DimCuriosity, 0.01)
	case OutcomeGhost:
		if stage == StageS1 && sentCountInThread <= 1 {
			w.nudge(DimInviteRate, -0.005)
			w.nudge(DimFlirt, -0.01)
		} else {
			w.nudge(DimInviteRate, -0.02)
			w.nudge(DimFlirt, -0.02)
			w.nudge(DimWarmth, 0.01)
			w.nudge(DimBrevity, 0.01)
		}
	case OutcomeDatePlanned:
		w.nudge(DimInviteRate, 0.03)
		w.nudge(DimWarmth, 0.01)
		w.nudge(DimCuriosity, 0.01)
	case OutcomeDate:
		// A date that already happened carries no weight signal of its
		// own; the datePlanned outcome preceding it did the learning.
	}
}

// ApplyStreakBonus rewards a run of non-ghosted reply cycles.
func ApplyStreakBonus(u *User) {
	if !u.LearningEnabled {
		return
	}
	u.Weights.nudge(DimWarmth, 0.01)
	u.Weights.nudge(DimCuriosity, 0.01)
}
