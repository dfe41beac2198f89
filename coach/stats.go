package coach

import (
	"fmt"
	"math"
	"sort"
)

func pct(num, den int) int {
	if den == 0 {
		return 0
	}
	return int(math.Round(float64(num) / float64(den) * 100))
}

// ScoreText renders the success ratio as "successes/conversations (pct%)".
func ScoreText(conv ConvStats) string {
	return fmt.Sprintf("%d/%d (%d%%)", conv.Successes, conv.Conversations, pct(conv.Successes, conv.Conversations))
}

type ModeReportRow struct {
	Mode      Mode
	Sent      int
	Replied   int
	Dates     int
	Ghosts    int
	ReplyRate int
	DateRate  int
}

type ModeReport struct {
	Rows []ModeReportRow
	Best Mode
}

// BuildModeReport ranks the five modes by date rate, then reply rate,
// then sent volume (the stable tie-break favors proven volume).
func BuildModeReport(stats map[Mode]*DeliveryCounters) ModeReport {
	rows := make([]ModeReportRow, 0, len(AllModes()))
	for _, m := range AllModes() {
		c := stats[m]
		if c == nil {
			c = &DeliveryCounters{}
		}
		rows = append(rows, ModeReportRow{
			Mode:      m,
			Sent:      c.Sent,
			Replied:   c.Replied,
			Dates:     c.Dates,
			Ghosts:    c.Ghosts,
			ReplyRate: pct(c.Replied, c.Sent),
			DateRate:  pct(c.Dates, c.Sent),
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].DateRate != rows[j].DateRate {
			return rows[i].DateRate > rows[j].DateRate
		}
		if rows[i].ReplyRate != rows[j].ReplyRate {
			return rows[i].ReplyRate > rows[j].ReplyRate
		}
		return rows[i].Sent > rows[j].Sent
	})

	report := ModeReport{Rows: rows, Best: ModeBase}
	if len(rows) > 0 {
		report.Best = rows[0].Mode
	}
	return report
}

func (r ModeReport) Lines() []string {
	lines := make([]string, 0, len(r.Rows))
	for _, row := range r.Rows {
		lines = append(lines, fmt.Sprintf("• %s: sent=%d, replied=%d (%d%%), dates=%d (%d%%), ghost=%d",
			row.Mode, row.Sent, row.Replied, row.ReplyRate, row.Dates, row.DateRate, row.Ghosts))
	}
	return lines
}

type ModeScore struct {
	Mode  Mode
	Score float64
}

// TopModes ranks modes by accumulated bandit reward per try. Modes with
// no tries score zero.
func TopModes(u *User, n int) []ModeScore {
	scored := make([]ModeScore, 0, len(AllModes()))
	for _, m := range AllModes() {
		c := u.ModeStats[m]
		if c == nil {
			c = &BanditCounters{}
		}
		var score float64
		if c.Tries > 0 {
			score = float64(c.Replied*2+c.StrongReplied*3+c.DatePlanned*4-c.Ghost) / float64(c.Tries)
		}
		scored = append(scored, ModeScore{Mode: m, Score: score})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if n > 0 && len(scored) > n {
		scored = scored[:n]
	}
	return scored
}

// bumpDelivery updates the report counters for one mode. A strong reply
// also counts as a plain reply in the report, matching how the success
// ratio treats them.
func bumpDelivery(stats map[Mode]*DeliveryCounters, m Mode, outcome Outcome, sentIncrement int) {
	if stats == nil {
		return
	}
	if m == "" {
		m = ModeBase
	}
	c := stats[m]
	if c == nil {
		c = &DeliveryCounters{}
		stats[m] = c
	}
	c.Sent += sentIncrement
	switch outcome {
	case OutcomeReplied:
		c.Replied++
	case OutcomeStrongReplied:
		c.Replied++
		c.StrongReplied++
	case OutcomeDatePlanned:
		c.DatePlanned++
	case OutcomeDate:
		c.Dates++
	case OutcomeGhost:
		c.Ghosts++
	}
}
