package dto

// ScoreBucket is one fixed histogram range of the score distribution.
type ScoreBucket struct {
	Range      string   `json:"range"`
	Count      int      `json:"count"`
	Percentage float64  `json:"percentage"`
	// Students holds at most the first five names in the bucket; this is a
	// display truncation, not a data limit.
	Students []string `json:"students"`
}

// ScoreStatsResponse carries the derived analytics for one assessment.
// Every numeric field is 0, never NaN, when the graded set is empty.
type ScoreStatsResponse struct {
	AssessmentID     int64         `json:"assessment_id"`
	TotalSubmissions int           `json:"total_submissions"`
	Graded           int           `json:"graded"`
	CompletionRate   float64       `json:"completion_rate"`
	Mean             float64       `json:"mean"`
	Median           float64       `json:"median"`
	StdDev           float64       `json:"std_dev"`
	Max              float64       `json:"max"`
	Min              float64       `json:"min"`
	PassRate         float64       `json:"pass_rate"`
	Distribution     []ScoreBucket `json:"distribution"`
	CacheHit         bool          `json:"cache_hit,omitempty"`
}
