package sequencer

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"

	"chordclock/theory"
)

// GenerateRequest describes the progression wanted.
type GenerateRequest struct {
	Genre string       `json:"genre"`
	Root  int          `json:"root"`
	Scale theory.Scale `json:"scale"`
}

// Generator produces a chord progression for a genre and key. Results are
// clamped by the caller.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) ([]ChordStep, error)
}

type genreTemplates struct {
	name      string
	templates [][]ChordStep
}

func prog(pairs ...int) []ChordStep {
	steps := make([]ChordStep, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		steps = append(steps, ChordStep{Degree: pairs[i], Duration: pairs[i+1], Active: true})
	}
	return steps
}

// degree, duration pairs
var genreCatalog = []genreTemplates{
	{"Lo-Fi", [][]ChordStep{
		prog(1, 4, 4, 4, 0, 4, 5, 4),
		prog(3, 4, 2, 4, 1, 4, 4, 4),
		prog(5, 4, 3, 4, 0, 4, 4, 4),
	}},
	{"Neo-Soul", [][]ChordStep{
		prog(3, 4, 2, 4, 1, 4, 0, 4),
		prog(1, 2, 4, 2, 0, 4, 5, 8),
		prog(5, 4, 1, 4, 4, 4, 0, 4),
	}},
	{"Cinematic", [][]ChordStep{
		prog(5, 8, 3, 8, 0, 8, 4, 8),
		prog(0, 4, 2, 4, 5, 4, 3, 4),
		prog(5, 4, 4, 4, 3, 4, 4, 4),
	}},
	{"Deep House", [][]ChordStep{
		prog(5, 4, 3, 4, 0, 4, 4, 4),
		prog(1, 8, 4, 8, 1, 8, 4, 8),
		prog(5, 2, 5, 2, 3, 4, 4, 8),
	}},
	{"Jazz", [][]ChordStep{
		prog(1, 4, 4, 4, 0, 8, 5, 4),
		prog(0, 4, 5, 4, 1, 4, 4, 4),
		prog(2, 4, 5, 4, 1, 4, 4, 4),
	}},
	{"Pop", [][]ChordStep{
		prog(0, 4, 4, 4, 5, 4, 3, 4),
		prog(5, 4, 3, 4, 0, 4, 4, 4),
		prog(0, 4, 3, 4, 4, 4, 3, 4),
	}},
}

// Genres lists the genres TemplateGenerator knows.
func Genres() []string {
	names := make([]string, len(genreCatalog))
	for i, g := range genreCatalog {
		names[i] = g.name
	}
	return names
}

// TemplateGenerator picks one of a handful of idiomatic four-chord
// progressions per genre.
type TemplateGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewTemplateGenerator uses r for template choice; nil seeds from the
// runtime source.
func NewTemplateGenerator(r *rand.Rand) *TemplateGenerator {
	if r == nil {
		r = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &TemplateGenerator{rng: r}
}

func (g *TemplateGenerator) Generate(ctx context.Context, req GenerateRequest) ([]ChordStep, error) {
	if err := ctx.Err(); err != nil {
		return nil, fault.Wrap(err, fmsg.With("generate progression"))
	}

	for _, genre := range genreCatalog {
		if !strings.EqualFold(genre.name, strings.TrimSpace(req.Genre)) {
			continue
		}
		g.mu.Lock()
		pick := genre.templates[g.rng.IntN(len(genre.templates))]
		g.mu.Unlock()

		steps := make([]ChordStep, len(pick))
		for i, s := range pick {
			s.ID = NewStepID()
			steps[i] = s
		}
		return steps, nil
	}

	return nil, fault.New(fmt.Sprintf("unknown genre %q", req.Genre),
		fmsg.WithDesc("unknown genre", fmt.Sprintf("choose one of %s", strings.Join(Genres(), ", "))),
		ftag.With(ftag.InvalidArgument))
}
