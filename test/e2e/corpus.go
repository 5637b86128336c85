// Package e2e provides end-to-end tests over a synthetic corpus of series families.
package e2e

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/hyperjump/tsrag/internal/models"
)

// Family generates a clean shape sampled at n points.
type Family struct {
	Name  string
	Shape func(i, n int) float64
}

// Families are shapes far enough apart that a noisy member is always closer
// to its own family than to any other.
var Families = []Family{
	{"sine-1", func(i, n int) float64 { return math.Sin(2 * math.Pi * float64(i) / float64(n)) }},
	{"sine-3", func(i, n int) float64 { return math.Sin(6 * math.Pi * float64(i) / float64(n)) }},
	{"square-2", func(i, n int) float64 {
		if (4*i/n)%2 == 0 {
			return 1
		}
		return -1
	}},
	{"ramp-up", func(i, n int) float64 { return 4 * float64(i) / float64(n) }},
	{"ramp-down", func(i, n int) float64 { return 4 - 4*float64(i)/float64(n) }},
	{"step", func(i, n int) float64 {
		if i < n/2 {
			return 0
		}
		return 3
	}},
}

// CorpusSeries is one series of the corpus.
type CorpusSeries struct {
	ID     string
	Family string
	Values []float64
}

// QueryTestCase is a fresh noisy family member whose nearest neighbours must
// come from ExpectedFamily.
type QueryTestCase struct {
	Description    string
	Series         []float64
	ExpectedFamily string
}

// Corpus holds documents and query test cases for E2E tests.
type Corpus struct {
	Series       []CorpusSeries
	TestCases    []QueryTestCase
	TotalDocs    int
	TotalQueries int
}

// BuildCorpus returns perFamily noisy members of every family and one query
// per family. The same seed always yields the same corpus.
func BuildCorpus(perFamily int, seed uint64) *Corpus {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	c := &Corpus{}
	for _, f := range Families {
		for j := 0; j < perFamily; j++ {
			c.Series = append(c.Series, CorpusSeries{
				ID:     fmt.Sprintf("%s-%03d", f.Name, j),
				Family: f.Name,
				Values: member(f, rng),
			})
		}
		c.TestCases = append(c.TestCases, QueryTestCase{
			Description:    "query " + f.Name,
			Series:         member(f, rng),
			ExpectedFamily: f.Name,
		})
	}
	c.TotalDocs = len(c.Series)
	c.TotalQueries = len(c.TestCases)
	return c
}

// member samples f at a random length in [96, 128) with gaussian noise.
func member(f Family, rng *rand.Rand) []float64 {
	n := 96 + rng.IntN(32)
	out := make([]float64, n)
	for i := range out {
		out[i] = f.Shape(i, n) + 0.1*rng.NormFloat64()
	}
	return out
}

// ToDocumentInputs converts the corpus to engine inputs with the family as metadata.
func (c *Corpus) ToDocumentInputs() []*models.DocumentInput {
	out := make([]*models.DocumentInput, len(c.Series))
	for i, s := range c.Series {
		out[i] = &models.DocumentInput{
			ID:       s.ID,
			Series:   s.Values,
			Metadata: map[string]interface{}{"family": s.Family},
		}
	}
	return out
}
