package iteration

// Summary aggregates statistics over recorded rows.
type Summary struct {
	Count          int
	BestIteration  int
	BestLikelihood float64
	LastLikelihood float64
}

// Summarize computes the row count, the minimum total likelihood with its iteration, and the
// last total likelihood. Safe for nil or empty input (returns zero-value fields).
func Summarize(rows []Row) Summary {
	var s Summary
	if len(rows) == 0 {
		return s
	}
	s.Count = len(rows)
	s.BestIteration = rows[0].Iteration
	s.BestLikelihood = rows[0].TotalLikelihood
	for _, r := range rows[1:] {
		if r.TotalLikelihood < s.BestLikelihood {
			s.BestLikelihood = r.TotalLikelihood
			s.BestIteration = r.Iteration
		}
	}
	s.LastLikelihood = rows[len(rows)-1].TotalLikelihood
	return s
}
