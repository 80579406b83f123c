package certification

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ErrMalformedScores marks a stored criteria_scores value that no longer decodes.
var ErrMalformedScores = errors.New("malformed criteria scores")

// Evaluation is the RH scoring for one evaluation cycle of a request. Rows of
// earlier cycles are kept for audit and never drive a decision.
type Evaluation struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	RequestID       uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_cert_evaluation_request_cycle,priority:1;column:request_id" json:"request_id"`
	Cycle           int            `gorm:"not null;uniqueIndex:idx_cert_evaluation_request_cycle,priority:2;column:cycle" json:"cycle"`
	EvaluatorID     uuid.UUID      `gorm:"type:uuid;not null;column:evaluator_id" json:"evaluator_id"`
	CriteriaScores  datatypes.JSON `gorm:"column:criteria_scores" json:"criteria_scores"`
	GlobalScore     int            `gorm:"not null;default:0;column:global_score" json:"global_score"`
	Recommendation  Recommendation `gorm:"type:varchar(32);not null;column:recommendation" json:"recommendation"`
	Comment         string         `gorm:"type:text;column:comment" json:"comment,omitempty"`
	DurationMinutes int            `gorm:"not null;default:0;column:duration_minutes" json:"evaluation_duration_minutes"`
	CreatedAt       time.Time      `gorm:"not null;column:created_at" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null;column:updated_at" json:"updated_at"`
}

func (Evaluation) TableName() string { return "certification_evaluation" }

// Scores decodes the criterion-id to points map.
func (e *Evaluation) Scores() (map[string]int, error) {
	out := map[string]int{}
	if e == nil || len(e.CriteriaScores) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(e.CriteriaScores, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetScores stores the scores and recomputes GlobalScore.
func (e *Evaluation) SetScores(scores map[string]int) error {
	raw, err := json.Marshal(scores)
	if err != nil {
		return err
	}
	e.CriteriaScores = datatypes.JSON(raw)
	e.GlobalScore = SumScores(scores)
	return nil
}

// Recompute refreshes GlobalScore from CriteriaScores; the stored column is
// never trusted on read.
func (e *Evaluation) Recompute() error {
	if e == nil {
		return nil
	}
	scores, err := e.Scores()
	if err != nil {
		return fmt.Errorf("%w: evaluation %s: %v", ErrMalformedScores, e.ID, err)
	}
	e.GlobalScore = SumScores(scores)
	return nil
}

func SumScores(scores map[string]int) int {
	total := 0
	for _, v := range scores {
		total += v
	}
	return total
}
