package geography

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"diacritics folded", "Timișoara", "timisoara"},
		{"already plain", "timisoara", "timisoara"},
		{"uppercase lowered", "CLUJ-NAPOCA", "cluj-napoca"},
		{"whitespace collapsed", "  Satu   Mare ", "satu mare"},
		{"romanian letters", "Brăila", "braila"},
		{"comma variants", "Târgu Mureș", "targu mures"},
		{"empty", "", ""},
		{"spaces only", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestStripAdminPrefix(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"municipiul cluj-napoca", "cluj-napoca"},
		{"mun. bucuresti", "bucuresti"},
		{"orasul navodari", "navodari"},
		{"comuna dumbravita", "dumbravita"},
		{"sat chinteni", "chinteni"},
		{"city of timisoara", "timisoara"},
		{"cluj-napoca", "cluj-napoca"},
		// A bare admin word with no following name is left alone.
		{"comuna", "comuna"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, StripAdminPrefix(tt.input))
		})
	}
}

func TestResolveCounty(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"canonical passthrough", "Timis", "Timis"},
		{"diacritics", "Timiș", "Timis"},
		{"plate code", "TM", "Timis"},
		{"bucharest plate code", "B", "Bucuresti"},
		{"spacing variant", "Bistrita Nasaud", "Bistrita-Nasaud"},
		{"judet prefix variant", "Judetul Cluj", "Cluj"},
		{"county suffix", "Arges County", "Arges"},
		{"judet suffix", "Iasi judet", "Iasi"},
		{"foreign name", "Bucharest", "Bucuresti"},
		{"historic foreign name", "Kronstadt", "Brasov"},
		{"unknown falls back", "Atlantis", DefaultCounty},
		{"empty falls back", "", DefaultCounty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveCounty(tt.input))
		})
	}
}

// staticGazetteer serves a fixed vocabulary per county
type staticGazetteer struct {
	localities map[string][]Locality
	err        error
	lastCounty string
}

func (g *staticGazetteer) Localities(_ context.Context, county string) ([]Locality, error) {
	g.lastCounty = county
	if g.err != nil {
		return nil, g.err
	}
	return g.localities[county], nil
}

func timisGazetteer() *staticGazetteer {
	return &staticGazetteer{localities: map[string][]Locality{
		"Timis": {
			{Name: "Timisoara", County: "Timis"},
			{Name: "Lugoj", County: "Timis"},
			{Name: "Dumbravita", County: "Timis"},
			{Name: "Sannicolau Mare", County: "Timis"},
		},
		"Cluj": {
			{Name: "Municipiul Cluj-Napoca", County: "Cluj"},
			{Name: "Turda", County: "Cluj"},
			{Name: "Floresti", County: "Cluj"},
		},
	}}
}

func newTestResolver(g Gazetteer) *Resolver {
	return NewResolver(g, zap.NewNop())
}

func TestResolver_ExactMatchWithDiacritics(t *testing.T) {
	g := timisGazetteer()
	r := newTestResolver(g)

	got, err := r.Resolve(context.Background(), "Timișoara", "Timiș")
	require.NoError(t, err)
	assert.Equal(t, "Timisoara", got)
	assert.Equal(t, "Timis", g.lastCounty)
}

func TestResolver_SubstringMatch(t *testing.T) {
	g := timisGazetteer()
	r := newTestResolver(g)

	// Address carries more than the canonical name.
	got, err := r.Resolve(context.Background(), "Timisoara (jud. Timis)", "TM")
	require.NoError(t, err)
	assert.Equal(t, "Timisoara", got)
}

func TestResolver_PrefixStrippedMatch(t *testing.T) {
	g := timisGazetteer()
	r := newTestResolver(g)

	// The gazetteer entry carries the administrative prefix, the address does
	// not.
	got, err := r.Resolve(context.Background(), "Cluj-Napoca", "Cluj")
	require.NoError(t, err)
	assert.Equal(t, "Municipiul Cluj-Napoca", got)
}

func TestResolver_PrefixedAddressMatch(t *testing.T) {
	g := timisGazetteer()
	r := newTestResolver(g)

	got, err := r.Resolve(context.Background(), "Municipiul Cluj-Napoca", "Cluj")
	require.NoError(t, err)
	assert.Equal(t, "Municipiul Cluj-Napoca", got)
}

func TestResolver_NotFoundCarriesSamples(t *testing.T) {
	g := timisGazetteer()
	r := newTestResolver(g)

	_, err := r.Resolve(context.Background(), "Orasul Inexistent", "Timis")
	require.Error(t, err)

	var nf *LocalityNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "Orasul Inexistent", nf.City)
	assert.Equal(t, "Timis", nf.County)
	assert.Len(t, nf.Samples, 4)
	assert.Contains(t, nf.Error(), "Lugoj")
}

func TestResolver_SamplesCapped(t *testing.T) {
	many := make([]Locality, 25)
	for i := range many {
		many[i] = Locality{Name: string(rune('A'+i)) + "ville", County: "Ilfov"}
	}
	g := &staticGazetteer{localities: map[string][]Locality{"Ilfov": many}}
	r := newTestResolver(g)

	_, err := r.Resolve(context.Background(), "nowhere-at-all-xyz", "Ilfov")
	require.Error(t, err)

	var nf *LocalityNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Len(t, nf.Samples, maxSampleCandidates)
}

func TestResolver_EmptyCityNeverMatches(t *testing.T) {
	g := timisGazetteer()
	r := newTestResolver(g)

	_, err := r.Resolve(context.Background(), "   ", "Timis")
	var nf *LocalityNotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestResolver_GazetteerFailurePropagates(t *testing.T) {
	g := &staticGazetteer{err: errors.New("courier geography endpoint down")}
	r := newTestResolver(g)

	_, err := r.Resolve(context.Background(), "Timisoara", "Timis")
	require.Error(t, err)
	var nf *LocalityNotFoundError
	assert.False(t, errors.As(err, &nf))
}

func TestResolver_UnknownCountyFallsBackToDefault(t *testing.T) {
	g := &staticGazetteer{localities: map[string][]Locality{
		DefaultCounty: {{Name: "Sector 1", County: DefaultCounty}},
	}}
	r := newTestResolver(g)

	got, err := r.Resolve(context.Background(), "Sector 1", "???")
	require.NoError(t, err)
	assert.Equal(t, "Sector 1", got)
	assert.Equal(t, DefaultCounty, g.lastCounty)
}
