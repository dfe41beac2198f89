package coach

import "math/rand"

const exploreEpsilon = 0.10

// AvailableModes returns the modes eligible at a stage. Playful and
// neutral openers are safe early, flirtation requires established
// trust, invitations require the meeting-ready stage.
func AvailableModes(stage Stage) []Mode {
	switch stage {
	case StageS3:
		return []Mode{ModeBase, ModeShort, ModeFunny, ModeBolder}
	case StageS4:
		return []Mode{ModeBase, ModeShort, ModeFunny, ModeBolder, ModeInvite}
	default:
		return []Mode{ModeBase, ModeShort, ModeFunny}
	}
}

// ScoreMode computes the greedy selection score for one mode from the
// user's global bandit counters plus the weight-derived bonus.
// Laplace-smoothed rate estimates avoid divide-by-zero and
// overconfidence on low samples.
func ScoreMode(u *User, rel *Relationship, m Mode) float64 {
	stage := StageS1
	pacing := u.Settings.Pacing
	if rel != nil {
		stage = rel.Stage
	}

	s := u.ModeStats[m]
	if s == nil {
		s = &BanditCounters{}
	}
	tries := float64(s.Tries)
	replyScore := (float64(s.Replied) + 1) / (tries + 3)
	strongScore := (float64(s.StrongReplied) + 0.5) / (tries + 3)
	dateScore := (float64(s.DatePlanned) + 0.2) / (tries + 4)
	ghostScore := (float64(s.Ghost) + 0.2) / (tries + 4)

	// Invites and dates barely count as a selection signal before S4.
	stageGate := 0.05
	if stage == StageS4 {
		stageGate = 1
	}
	score := replyScore*2 + strongScore*3 + dateScore*stageGate - ghostScore

	weights := EffectiveWeights(u, rel)
	switch m {
	case ModeBase:
		score += weights.Warmth * 0.25
	case ModeShort:
		score += weights.Brevity * 0.22
	case ModeFunny:
		score += weights.Humor * 0.22
	case ModeBolder:
		score += weights.Flirt * 0.20
	case ModeInvite:
		bonus := 0.05
		if stage == StageS4 {
			bonus = 0.25
		}
		score += weights.InviteRate * bonus
	}

	// Dampen boldness under a deliberately slow courtship pace.
	if pacing == PacingWarm && stage == StageS3 && m == ModeBolder {
		score *= 0.7
	}
	return score
}

// PickMode runs the epsilon-greedy selection over the stage-available
// mode set. With probability exploreEpsilon it explores uniformly;
// otherwise it returns the highest-scoring mode, first max winning
// ties. A nil rng falls back to the shared source.
func PickMode(u *User, rel *Relationship, rng *rand.Rand) Mode {
	stage := StageS1
	if rel != nil {
		stage = rel.Stage
	}
	modes := AvailableModes(stage)

	explore := rand.Float64
	pick := rand.Intn
	if rng != nil {
		explore = rng.Float64
		pick = rng.Intn
	}
	if explore() < exploreEpsilon {
		return modes[pick(len(modes))]
	}

	best := modes[0]
	bestScore := ScoreMode(u, rel, best)
	for _, m := range modes[1:] {
		if score := ScoreMode(u, rel, m); score > bestScore {
			best, bestScore = m, score
		}
	}
	return best
}

func bumpBanditTry(u *User, m Mode) {
	c := ensureBandit(u, m)
	c.Tries++
}

func bumpBanditOutcome(u *User, m Mode, outcome Outcome) {
	c := ensureBandit(u, m)
	switch outcome {
	case OutcomeReplied:
		c.Replied++
	case OutcomeStrongReplied:
		c.StrongReplied++
	case OutcomeGhost:
		c.Ghost++
	case OutcomeDatePlanned:
		c.DatePlanned++
	case OutcomeDate:
		// Only planned dates feed selection; see stats.go for the
		// report-side date counter.
	}
}

func ensureBandit(u *User, m Mode) *BanditCounters {
	if u.ModeStats == nil {
		u.ModeStats = make(map[Mode]*BanditCounters, len(AllModes()))
	}
	c := u.ModeStats[m]
	if c == nil {
		c = &BanditCounters{}
		u.ModeStats[m] = c
	}
	return c
}
