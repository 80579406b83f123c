package certification

import (
	"fmt"
	"sort"
	"strings"

	domainagg "github.com/yungbote/certification-backend/internal/domain/aggregates"
)

type Criterion struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	MaxPoints int    `json:"max_points"`
}

// ScoringDomain is a pedagogical domain: the criteria an RH scores and the
// badge level an approval in this domain yields.
type ScoringDomain struct {
	Code     string      `json:"code"`
	Label    string      `json:"label"`
	Level    Level       `json:"level"`
	Criteria []Criterion `json:"criteria"`
}

// DomainCatalog resolves pedagogical domains by code.
type DomainCatalog interface {
	Domain(code string) (ScoringDomain, bool)
}

func (d ScoringDomain) Criterion(id string) (Criterion, bool) {
	for _, c := range d.Criteria {
		if c.ID == id {
			return c, true
		}
	}
	return Criterion{}, false
}

// ValidateScores checks every key against the domain's criteria and every
// score against [0, MaxPoints].
func (d ScoringDomain) ValidateScores(op string, scores map[string]int) error {
	keys := make([]string, 0, len(scores))
	for k := range scores {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		c, ok := d.Criterion(k)
		if !ok {
			return domainagg.NewError(domainagg.CodeUnknownCriterion, op,
				fmt.Sprintf("criterion %q is not part of domain %s (expected one of: %s)", k, d.Code, strings.Join(d.criterionIDs(), ", ")), nil)
		}
		v := scores[k]
		if v < 0 || v > c.MaxPoints {
			return domainagg.NewError(domainagg.CodeInvalidInput, op,
				fmt.Sprintf("score for %s must be between 0 and %d, got %d", k, c.MaxPoints, v), nil)
		}
	}
	return nil
}

func (d ScoringDomain) criterionIDs() []string {
	out := make([]string, 0, len(d.Criteria))
	for _, c := range d.Criteria {
		out = append(out, c.ID)
	}
	return out
}

// MaxTotal is the sum of all criterion maxima; never above 100 for a loaded catalog.
func (d ScoringDomain) MaxTotal() int {
	total := 0
	for _, c := range d.Criteria {
		total += c.MaxPoints
	}
	return total
}
