package catalog

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/certification-backend/internal/domain/certification"
	"github.com/yungbote/certification-backend/internal/platform/envutil"
	"github.com/yungbote/certification-backend/internal/platform/logger"
)

const catalogPathEnv = "CATALOG_PATH"

//go:embed domains.yaml
var defaultCatalogFS embed.FS

type fileSpec struct {
	Domains []domainSpec `yaml:"domains"`
}

type domainSpec struct {
	Code     string          `yaml:"code"`
	Label    string          `yaml:"label"`
	Level    string          `yaml:"level"`
	Criteria []criterionSpec `yaml:"criteria"`
}

type criterionSpec struct {
	ID     string `yaml:"id"`
	Label  string `yaml:"label"`
	Weight *int   `yaml:"weight"`
}

// Catalog is the read-only set of pedagogical domains.
type Catalog struct {
	domains map[string]certification.ScoringDomain
}

var _ certification.DomainCatalog = (*Catalog)(nil)

// Load reads CATALOG_PATH when set, otherwise the embedded catalog.
func Load(log *logger.Logger) (*Catalog, error) {
	path := envutil.String(catalogPathEnv, "")
	if path == "" {
		raw, err := defaultCatalogFS.ReadFile("domains.yaml")
		if err != nil {
			return nil, fmt.Errorf("read embedded catalog: %w", err)
		}
		c, err := Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("embedded catalog: %w", err)
		}
		if log != nil {
			log.Info("Domain catalog loaded", "source", "embedded", "domains", len(c.domains))
		}
		return c, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	c, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	if log != nil {
		log.Info("Domain catalog loaded", "source", path, "domains", len(c.domains))
	}
	return c, nil
}

// Parse decodes and validates a catalog document.
func Parse(raw []byte) (*Catalog, error) {
	var spec fileSpec
	if err := yaml.Unmarshal(raw, &spec); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if len(spec.Domains) == 0 {
		return nil, errors.New("catalog defines no domains")
	}
	out := &Catalog{domains: make(map[string]certification.ScoringDomain, len(spec.Domains))}
	for _, ds := range spec.Domains {
		d, err := buildDomain(ds)
		if err != nil {
			return nil, err
		}
		if _, dup := out.domains[d.Code]; dup {
			return nil, fmt.Errorf("duplicate domain code %q", d.Code)
		}
		out.domains[d.Code] = d
	}
	return out, nil
}

func buildDomain(ds domainSpec) (certification.ScoringDomain, error) {
	code := normalizeCode(ds.Code)
	if code == "" {
		return certification.ScoringDomain{}, errors.New("domain code is required")
	}
	if len(ds.Criteria) == 0 {
		return certification.ScoringDomain{}, fmt.Errorf("domain %s has no criteria", code)
	}
	even := 100 / len(ds.Criteria)
	seen := map[string]bool{}
	criteria := make([]certification.Criterion, 0, len(ds.Criteria))
	total := 0
	for _, cs := range ds.Criteria {
		id := strings.TrimSpace(cs.ID)
		if id == "" {
			return certification.ScoringDomain{}, fmt.Errorf("domain %s: criterion id is required", code)
		}
		if seen[id] {
			return certification.ScoringDomain{}, fmt.Errorf("domain %s: duplicate criterion %q", code, id)
		}
		seen[id] = true
		maxPoints := even
		if cs.Weight != nil {
			maxPoints = *cs.Weight
		}
		if maxPoints <= 0 {
			return certification.ScoringDomain{}, fmt.Errorf("domain %s: criterion %s must weigh more than 0", code, id)
		}
		total += maxPoints
		label := strings.TrimSpace(cs.Label)
		if label == "" {
			label = id
		}
		criteria = append(criteria, certification.Criterion{ID: id, Label: label, MaxPoints: maxPoints})
	}
	if total > 100 {
		return certification.ScoringDomain{}, fmt.Errorf("domain %s: criterion weights sum to %d, above 100", code, total)
	}
	label := strings.TrimSpace(ds.Label)
	if label == "" {
		label = code
	}
	return certification.ScoringDomain{
		Code:     code,
		Label:    label,
		Level:    certification.ParseLevel(ds.Level),
		Criteria: criteria,
	}, nil
}

func normalizeCode(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

func (c *Catalog) Domain(code string) (certification.ScoringDomain, bool) {
	if c == nil {
		return certification.ScoringDomain{}, false
	}
	d, ok := c.domains[normalizeCode(code)]
	return d, ok
}

// Domains lists every domain ordered by code.
func (c *Catalog) Domains() []certification.ScoringDomain {
	if c == nil {
		return nil
	}
	out := make([]certification.ScoringDomain, 0, len(c.domains))
	for _, d := range c.domains {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
