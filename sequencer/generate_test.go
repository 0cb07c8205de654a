package sequencer

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/Southclaws/fault/ftag"
	"github.com/stretchr/testify/require"

	"chordclock/theory"
)

func TestTemplateGeneratorGenres(t *testing.T) {
	g := NewTemplateGenerator(rand.New(rand.NewPCG(1, 2)))
	require.Equal(t, []string{"Lo-Fi", "Neo-Soul", "Cinematic", "Deep House", "Jazz", "Pop"}, Genres())

	for _, genre := range Genres() {
		steps, err := g.Generate(context.Background(), GenerateRequest{Genre: genre, Scale: theory.Major})
		require.NoError(t, err, genre)
		require.Len(t, steps, 4, genre)
		for _, s := range steps {
			require.Equal(t, ClampStep(s), s)
			require.NotEmpty(t, s.ID)
			require.True(t, s.Active)
		}
	}
}

func TestTemplateGeneratorErrors(t *testing.T) {
	g := NewTemplateGenerator(nil)

	_, err := g.Generate(context.Background(), GenerateRequest{Genre: "polka"})
	require.Error(t, err)
	require.Equal(t, ftag.InvalidArgument, ftag.Get(err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = g.Generate(ctx, GenerateRequest{Genre: "Pop"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestTemplateGeneratorIgnoresCase(t *testing.T) {
	g := NewTemplateGenerator(nil)
	steps, err := g.Generate(context.Background(), GenerateRequest{Genre: " deep house "})
	require.NoError(t, err)
	require.Len(t, steps, 4)
}
