package migration

import (
	"context"
	"sort"
	"strings"

	"bitbucket.org/mmdatafocus/eboekhouden_migration/config"
	"bitbucket.org/mmdatafocus/eboekhouden_migration/models"
	"bitbucket.org/mmdatafocus/eboekhouden_migration/utils"
)

// maxErrorSamples bounds how many example contexts are kept per
// (kind, reason) aggregate. Counts are always exact.
const maxErrorSamples = 10

// KindStats are the per-kind counters of one run.
type KindStats struct {
	Created int            `json:"created"`
	Skipped map[string]int `json:"skipped,omitempty"`
	Failed  int            `json:"failed"`
}

type errorAggregate struct {
	Count   int      `json:"count"`
	Samples []string `json:"samples"`
}

// RunStats accumulates counters and aggregated errors for one run. Not safe
// for concurrent use; a run processes mutations sequentially.
type RunStats struct {
	Kinds  map[string]*KindStats      `json:"kinds"`
	Errors map[string]*errorAggregate `json:"errors,omitempty"`
}

func NewRunStats() *RunStats {
	return &RunStats{
		Kinds:  map[string]*KindStats{},
		Errors: map[string]*errorAggregate{},
	}
}

func (s *RunStats) kind(kind string) *KindStats {
	ks, ok := s.Kinds[kind]
	if !ok {
		ks = &KindStats{Skipped: map[string]int{}}
		s.Kinds[kind] = ks
	}
	return ks
}

func (s *RunStats) Created(kind string) {
	s.kind(kind).Created++
}

func (s *RunStats) Skipped(kind string, reason string) {
	s.kind(kind).Skipped[reason]++
}

// CreatedN and SkippedN fold in bulk counts from the import steps that
// report totals rather than per-record outcomes.

func (s *RunStats) CreatedN(kind string, n int) {
	if n > 0 {
		s.kind(kind).Created += n
	}
}

func (s *RunStats) SkippedN(kind string, reason string, n int) {
	if n > 0 {
		s.kind(kind).Skipped[reason] += n
	}
}

// Failed counts a builder failure, aggregating the context sample under
// (kind, reason).
func (s *RunStats) Failed(kind string, reason string, sample string) {
	s.kind(kind).Failed++
	key := kind + ":" + reason
	agg, ok := s.Errors[key]
	if !ok {
		agg = &errorAggregate{}
		s.Errors[key] = agg
	}
	agg.Count++
	if len(agg.Samples) < maxErrorSamples {
		agg.Samples = append(agg.Samples, sample)
	}
}

func (s *RunStats) TotalCreated() int {
	total := 0
	for _, ks := range s.Kinds {
		total += ks.Created
	}
	return total
}

func (s *RunStats) TotalFailed() int {
	total := 0
	for _, ks := range s.Kinds {
		total += ks.Failed
	}
	return total
}

// Status derives the run exit status: partial means some documents landed
// alongside failures.
func (s *RunStats) Status() string {
	failed := s.TotalFailed()
	created := s.TotalCreated()
	switch {
	case failed > 0 && created == 0:
		return models.MigrationRunStatusFailed
	case failed > 0:
		return models.MigrationRunStatusPartial
	default:
		return models.MigrationRunStatusSuccess
	}
}

// Persist writes the aggregated error records for operator review. Only
// aggregates cross the run boundary; individual mutation errors stay in the
// log.
func (s *RunStats) Persist(ctx context.Context, runId uint, companyId string) error {
	keys := make([]string, 0, len(s.Errors))
	for key := range s.Errors {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	db := config.GetDB()
	for _, key := range keys {
		agg := s.Errors[key]
		payloadJSON, _ := utils.MarshalToJSON(struct {
			Count   int      `json:"count"`
			Samples []string `json:"samples"`
		}{agg.Count, agg.Samples})
		kind, reason := splitErrorKey(key)
		record := models.MigrationError{
			RunId:       runId,
			CompanyId:   companyId,
			EntityType:  kind,
			ErrorCode:   reason,
			Message:     firstSample(agg.Samples),
			PayloadJSON: []byte(payloadJSON),
			Retryable:   true,
		}
		if err := db.WithContext(ctx).Create(&record).Error; err != nil {
			return err
		}
	}
	return nil
}

func splitErrorKey(key string) (kind string, reason string) {
	if i := strings.Index(key, ":"); i >= 0 {
		return key[:i], key[i+1:]
	}
	return key, "build_failed"
}

func firstSample(samples []string) string {
	if len(samples) == 0 {
		return ""
	}
	return samples[0]
}
