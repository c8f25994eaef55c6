package record

// Summary describes the quality of a set of records.
type Summary struct {
	Total      int
	WithIssues int
	// AverageScore is the mean QualityScore, 0 if there are no records.
	AverageScore float64
	// QualityRate is the percentage of records without any quality issue.
	QualityRate float64
}

func Summarize(records []Record) Summary {
	s := Summary{Total: len(records)}
	if s.Total == 0 {
		return s
	}

	var sum int
	for _, r := range records {
		sum += r.Score()
		if r[QualityIssues] != "" {
			s.WithIssues++
		}
	}
	s.AverageScore = float64(sum) / float64(s.Total)
	s.QualityRate = float64(s.Total-s.WithIssues) / float64(s.Total) * 100
	return s
}
