package listening

// MaxTotalScore is the section ceiling; per-category sub-scores top out at 10.
const MaxTotalScore = 30

// ScoredAnswer is one recorded answer tagged with its question's category.
type ScoredAnswer struct {
	Category string
	Correct  bool
}

// ComputeReport reduces the answer set of a session into a score report.
// Pure with respect to its inputs: persistence is the store's concern.
//
// Zero answers yield an all-zero report. Otherwise the total is
// floor(correct/total * 30) clamped to MaxTotalScore, and each category
// present among the answers scores floor(correct/total * 10); categories
// with no answers stay 0.
func ComputeReport(sessionID string, answers []ScoredAnswer) ScoreReport {
	report := ScoreReport{SessionID: sessionID}
	if len(answers) == 0 {
		return report
	}

	correct := 0
	type tally struct{ correct, total int }
	byCategory := map[string]*tally{}
	for _, a := range answers {
		if a.Correct {
			correct++
		}
		t := byCategory[a.Category]
		if t == nil {
			t = &tally{}
			byCategory[a.Category] = t
		}
		t.total++
		if a.Correct {
			t.correct++
		}
	}

	raw := float64(correct) / float64(len(answers)) * 100
	total := int(raw / 100 * float64(MaxTotalScore))
	if total > MaxTotalScore {
		total = MaxTotalScore
	}
	report.TotalScore = total

	sub := func(category string) int {
		t := byCategory[category]
		if t == nil || t.total == 0 {
			return 0
		}
		return int(float64(t.correct) / float64(t.total) * 10)
	}
	report.MainIdea = sub("main_idea")
	report.Detail = sub("detail")
	report.Inference = sub("inference")
	report.Organization = sub("organization")
	report.Pragmatic = sub("pragmatic")
	return report
}
