package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/gradeflow-go-api/internal/dto"
	"github.com/noah-isme/gradeflow-go-api/pkg/gradingapi"
)

const passThreshold = 60.0

// bucketNames is the display order of the fixed score histogram.
var bucketNames = []string{"90-100", "80-89", "70-79", "60-69", "0-59"}

// maxBucketStudents caps how many names each bucket lists; purely a display
// truncation, the count still reflects every submission.
const maxBucketStudents = 5

// AssessmentFetcher retrieves an assessment with its embedded submissions.
type AssessmentFetcher interface {
	Assessment(ctx context.Context, assessmentID int64) (gradingapi.Assessment, error)
}

// ScoreStatsService computes score distribution analytics for an assessment.
type ScoreStatsService interface {
	ForAssessment(ctx context.Context, assessmentID int64) (dto.ScoreStatsResponse, error)
}

type scoreStatsService struct {
	backend  AssessmentFetcher
	cache    *redis.Client
	cacheTTL time.Duration
	logger   zerolog.Logger
}

// NewScoreStatsService constructs the analytics service. The cache client may
// be nil, in which case every call hits the backend.
func NewScoreStatsService(backend AssessmentFetcher, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) ScoreStatsService {
	return &scoreStatsService{
		backend:  backend,
		cache:    cache,
		cacheTTL: ttl,
		logger:   logger.With().Str("component", "score_stats_service").Logger(),
	}
}

func (s *scoreStatsService) ForAssessment(ctx context.Context, assessmentID int64) (dto.ScoreStatsResponse, error) {
	cacheKey := fmt.Sprintf("scorestats:%d", assessmentID)
	tracer := otel.Tracer("github.com/noah-isme/gradeflow-go-api/internal/service/score_stats")
	ctx, span := tracer.Start(ctx, "scorestats.aggregate")
	span.SetAttributes(attribute.Int64("assessment.id", assessmentID))
	defer span.End()

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, cacheKey).Result()
		if err == nil {
			var response dto.ScoreStatsResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				response.CacheHit = true
				span.SetAttributes(attribute.Bool("scorestats.cache_hit", true))
				return response, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read score stats cache")
			span.RecordError(err)
		}
	}

	assessment, err := s.backend.Assessment(ctx, assessmentID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "assessment_fetch_failed")
		return dto.ScoreStatsResponse{}, err
	}

	stats := AnalyzeScores(assessment.Submissions)
	stats.AssessmentID = assessmentID
	span.SetAttributes(
		attribute.Int("scorestats.total", stats.TotalSubmissions),
		attribute.Int("scorestats.graded", stats.Graded),
	)

	if s.cache != nil {
		payload, err := json.Marshal(stats)
		if err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store score stats cache")
				span.RecordError(err)
			}
		}
	}

	return stats, nil
}

// AnalyzeScores derives summary statistics and the fixed five-bucket
// histogram from a submission list. Submissions without a valid numeric
// percentage are excluded from the statistics, not treated as zero. Every
// output resolves to 0 rather than NaN on an empty graded set.
func AnalyzeScores(submissions []gradingapi.AssessmentSubmission) dto.ScoreStatsResponse {
	type gradedEntry struct {
		name    string
		percent float64
	}

	graded := make([]gradedEntry, 0, len(submissions))
	for _, submission := range submissions {
		if submission.GradingResult == nil {
			continue
		}
		percent := submission.GradingResult.Percentage
		if math.IsNaN(percent) || math.IsInf(percent, 0) {
			continue
		}
		graded = append(graded, gradedEntry{name: submission.StudentName, percent: percent})
	}

	stats := dto.ScoreStatsResponse{
		TotalSubmissions: len(submissions),
		Graded:           len(graded),
		Distribution:     make([]dto.ScoreBucket, len(bucketNames)),
	}
	for i, name := range bucketNames {
		stats.Distribution[i] = dto.ScoreBucket{Range: name, Students: []string{}}
	}

	if stats.TotalSubmissions > 0 {
		stats.CompletionRate = roundTo(float64(stats.Graded)/float64(stats.TotalSubmissions)*100, 1)
	}

	if len(graded) == 0 {
		return stats
	}

	percents := make([]float64, 0, len(graded))
	sum := 0.0
	passed := 0
	stats.Max = graded[0].percent
	stats.Min = graded[0].percent

	for _, entry := range graded {
		percents = append(percents, entry.percent)
		sum += entry.percent
		if entry.percent >= passThreshold {
			passed++
		}
		if entry.percent > stats.Max {
			stats.Max = entry.percent
		}
		if entry.percent < stats.Min {
			stats.Min = entry.percent
		}

		bucket := &stats.Distribution[bucketIndex(entry.percent)]
		bucket.Count++
		if len(bucket.Students) < maxBucketStudents {
			bucket.Students = append(bucket.Students, entry.name)
		}
	}

	stats.Mean = roundTo(sum/float64(len(graded)), 1)
	stats.PassRate = roundTo(float64(passed)/float64(len(graded))*100, 1)

	sort.Float64s(percents)
	mid := len(percents) / 2
	if len(percents)%2 == 0 {
		stats.Median = roundTo((percents[mid-1]+percents[mid])/2, 1)
	} else {
		stats.Median = percents[mid]
	}

	variance := 0.0
	mean := sum / float64(len(graded))
	for _, percent := range percents {
		variance += (percent - mean) * (percent - mean)
	}
	stats.StdDev = roundTo(math.Sqrt(variance/float64(len(percents))), 1)

	for i := range stats.Distribution {
		stats.Distribution[i].Percentage = roundTo(float64(stats.Distribution[i].Count)/float64(len(graded))*100, 1)
	}

	return stats
}

func bucketIndex(percent float64) int {
	switch {
	case percent >= 90:
		return 0
	case percent >= 80:
		return 1
	case percent >= 70:
		return 2
	case percent >= 60:
		return 3
	default:
		return 4
	}
}

func roundTo(value float64, decimals int) float64 {
	factor := math.Pow(10, float64(decimals))
	return math.Round(value*factor) / factor
}
