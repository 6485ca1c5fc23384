package verify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/soulcore/pkg/events"
	"github.com/entrhq/soulcore/pkg/lang"
	"github.com/entrhq/soulcore/pkg/memstore"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) SearchStructured(ctx context.Context, q memstore.Query) ([]memstore.Memory, error) {
	args := m.Called(ctx, q)
	mems, _ := args.Get(0).([]memstore.Memory)
	return mems, args.Error(1)
}

func (m *mockStore) SearchEntities(ctx context.Context, query string, opts memstore.EntityOptions) ([]memstore.Entity, error) {
	args := m.Called(ctx, query, opts)
	ents, _ := args.Get(0).([]memstore.Entity)
	return ents, args.Error(1)
}

type panicStore struct{}

func (panicStore) SearchStructured(context.Context, memstore.Query) ([]memstore.Memory, error) {
	panic("store exploded")
}

func (panicStore) SearchEntities(context.Context, string, memstore.EntityOptions) ([]memstore.Entity, error) {
	return nil, nil
}

func TestCheckShortCircuitsWithoutIndicator(t *testing.T) {
	store := &mockStore{}
	v := New(store)

	res := v.Check(context.Background(), "The weather is nice today", "how is the weather?")
	assert.False(t, res.Modified)
	assert.Equal(t, "The weather is nice today", res.Text)
	assert.Empty(t, res.Claims)
	assert.NotNil(t, res.Claims)
	store.AssertNotCalled(t, "SearchStructured", mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "SearchEntities", mock.Anything, mock.Anything, mock.Anything)
}

func TestCheckDisabled(t *testing.T) {
	store := &mockStore{}
	v := New(store, WithEnabled(false))

	res := v.Check(context.Background(), "I remember you told me about your guitar hobby", "")
	assert.False(t, res.Modified)
	assert.Empty(t, res.Claims)
	store.AssertNotCalled(t, "SearchStructured", mock.Anything, mock.Anything)
}

func TestExtractClaims(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []Claim
	}{
		{
			name: "single recall",
			text: "I remember you told me about your guitar hobby",
			want: []Claim{{Type: ClaimRecall, Text: "you told me about your guitar hobby", FullMatch: "I remember you told me about your guitar hobby"}},
		},
		{
			name: "german recall",
			text: "Ich erinnere mich, dass du Gitarre spielst.",
			want: []Claim{{Type: ClaimRecall, Text: "du Gitarre spielst", FullMatch: "Ich erinnere mich, dass du Gitarre spielst"}},
		},
		{
			name: "recall and date",
			text: "You mentioned that on March 3rd you moved.",
			want: []Claim{
				{Type: ClaimRecall, Text: "on March 3rd you moved", FullMatch: "You mentioned that on March 3rd you moved"},
				{Type: ClaimDate, Text: "March 3rd", FullMatch: "March 3rd"},
			},
		},
		{
			name: "numeric",
			text: "Last time you said it took about 5 years.",
			want: []Claim{
				{Type: ClaimRecall, Text: "you said it took about 5 years", FullMatch: "Last time you said it took about 5 years"},
				{Type: ClaimNumeric, Text: "about 5 years", FullMatch: "about 5 years"},
			},
		},
		{
			name: "german date and numeric",
			text: "Am 3. Mai hast du etwa 3 Jahre gefeiert",
			want: []Claim{
				{Type: ClaimDate, Text: "3. Mai", FullMatch: "3. Mai"},
				{Type: ClaimNumeric, Text: "etwa 3 Jahre", FullMatch: "etwa 3 Jahre"},
			},
		},
		{
			name: "german recall with ordinal date",
			text: "Du hast mir erzählt, dass du am 3. Mai 2023 nach Berlin gezogen bist. Schön!",
			want: []Claim{
				{Type: ClaimRecall, Text: "du am 3. Mai 2023 nach Berlin gezogen bist", FullMatch: "Du hast mir erzählt, dass du am 3. Mai 2023 nach Berlin gezogen bist"},
				{Type: ClaimDate, Text: "3. Mai 2023", FullMatch: "3. Mai 2023"},
			},
		},
		{
			name: "recall with dotted date ends at sentence",
			text: "You said you moved on 3.5.2023. Then it rained.",
			want: []Claim{
				{Type: ClaimRecall, Text: "you moved on 3.5.2023", FullMatch: "You said you moved on 3.5.2023"},
				{Type: ClaimDate, Text: "3.5.2023", FullMatch: "3.5.2023"},
			},
		},
		{
			name: "dedup case-insensitive",
			text: "I remember guitar. I remember Guitar!",
			want: []Claim{{Type: ClaimRecall, Text: "guitar", FullMatch: "I remember guitar"}},
		},
		{
			name: "nothing",
			text: "Nice weather.",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractClaims(tt.text))
		})
	}
}

func TestHasMemoryReference(t *testing.T) {
	assert.True(t, HasMemoryReference("Well, YOU TOLD ME so"))
	assert.True(t, HasMemoryReference("Du hast mir erzählt, dass du Tee magst"))
	assert.True(t, HasMemoryReference("<p>I <i>remember</i> that</p>"))
	assert.False(t, HasMemoryReference("Tell me more"))
}

func TestCheckSupported(t *testing.T) {
	store := memstore.NewMemoryStore()
	_, err := store.Add("Plays guitar on weekends", []string{"guitar", "hobby", "music"})
	require.NoError(t, err)
	rec := &events.Recorder{}

	v := New(store, WithEventBus(rec))
	res := v.Check(context.Background(), "I remember you told me about your guitar hobby", "")

	require.Len(t, res.Claims, 1)
	assert.Equal(t, ClaimRecall, res.Claims[0].Type)
	assert.Equal(t, StatusSupported, res.Claims[0].Status)
	assert.Contains(t, res.Claims[0].Evidence, "Plays guitar")
	assert.False(t, res.Modified)
	assert.Equal(t, "I remember you told me about your guitar hobby", res.Text)

	evs := rec.OfType(events.TypeClaimsVerified)
	require.Len(t, evs, 1)
	assert.Equal(t, 1, evs[0].Data["supported"])
}

func TestCheckContradicted(t *testing.T) {
	store := memstore.NewMemoryStore()
	_, err := store.Add("No longer plays guitar since the accident", []string{"guitar"})
	require.NoError(t, err)

	v := New(store)
	res := v.Check(context.Background(), "You told me you play guitar", "")

	require.Len(t, res.Claims, 1)
	assert.Equal(t, StatusContradicted, res.Claims[0].Status)
	assert.Contains(t, res.Claims[0].Evidence, "No longer")
	assert.True(t, res.Modified)
	assert.True(t, strings.HasSuffix(res.Text, lang.English.Table().Disclaimer))
	assert.True(t, strings.HasPrefix(res.Text, "You told me you play guitar\n\n"))
}

func TestCheckManyUnsupportedAddsDisclaimer(t *testing.T) {
	reply := "I remember your cat Felix. On March 3rd you moved to Berlin. It took about 5 years."

	v := New(nil, WithLanguage(lang.German))
	res := v.Check(context.Background(), reply, "")

	require.Len(t, res.Claims, 3)
	for _, c := range res.Claims {
		assert.Equal(t, StatusUnsupported, c.Status)
		assert.Empty(t, c.Evidence)
	}
	assert.True(t, res.Modified)
	assert.Equal(t, reply+"\n\n"+lang.German.Table().Disclaimer, res.Text)
}

func TestCheckTwoUnsupportedPassesThrough(t *testing.T) {
	reply := "I remember your cat Felix. It took about 5 years."
	res := New(nil).Check(context.Background(), reply, "")
	require.Len(t, res.Claims, 2)
	assert.False(t, res.Modified)
	assert.Equal(t, reply, res.Text)
}

func TestCheckBudgetDropsRemainingClaims(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		now = now.Add(300 * time.Millisecond)
		return now
	}
	reply := "I remember your cat Felix. On March 3rd you moved to Berlin. It took about 5 years."

	res := New(nil, WithClock(clock), WithBudget(500*time.Millisecond)).Check(context.Background(), reply, "")
	assert.Len(t, res.Claims, 1, "claims past the budget are dropped, not graded")
}

func TestCheckLookupErrorIsUnsupported(t *testing.T) {
	store := &mockStore{}
	store.On("SearchStructured", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))

	res := New(store).Check(context.Background(), "You told me you play guitar", "")
	require.Len(t, res.Claims, 1)
	assert.Equal(t, StatusUnsupported, res.Claims[0].Status)
	store.AssertExpectations(t)
}

func TestCheckQueriesWithContentWords(t *testing.T) {
	store := &mockStore{}
	store.On("SearchStructured", mock.Anything, memstore.Query{Tags: []string{"guitar", "hobby"}, Limit: 2}).
		Return([]memstore.Memory{}, nil)
	store.On("SearchEntities", mock.Anything, "guitar hobby", memstore.EntityOptions{Limit: 1}).
		Return([]memstore.Entity{{Name: "Guitar", Observations: []string{"user's hobby"}}}, nil)

	res := New(store, WithLimits(2, 1)).Check(context.Background(), "I remember you told me about your guitar hobby", "")
	require.Len(t, res.Claims, 1)
	assert.Equal(t, StatusSupported, res.Claims[0].Status)
	store.AssertExpectations(t)
}

func TestCheckRecoversFromStorePanic(t *testing.T) {
	res := New(panicStore{}).Check(context.Background(), "You told me you play guitar", "")
	require.Len(t, res.Claims, 1)
	assert.Equal(t, StatusUnsupported, res.Claims[0].Status)
}

func TestCheckHTMLReply(t *testing.T) {
	res := New(nil).Check(context.Background(), "<p>I remember <b>you</b> told me about your guitar hobby</p>", "")
	require.Len(t, res.Claims, 1)
	assert.Equal(t, "you told me about your guitar hobby", res.Claims[0].Text)
}

func TestContentWords(t *testing.T) {
	assert.Equal(t, []string{"guitar", "hobby"}, contentWords("you told me about your guitar hobby", 5))
	assert.Equal(t, []string{"gitarre", "spielst"}, contentWords("du Gitarre spielst", 5))
	assert.Equal(t, []string{"alpha", "bravo"}, contentWords("alpha bravo charlie delta", 2))
}

func TestNegatedWords(t *testing.T) {
	tests := []struct {
		text  string
		words []string
		want  map[string]bool
	}{
		{"does not like tea", []string{"like", "tea"}, map[string]bool{"like": true, "tea": true}},
		{"hat aufgehört zu rauchen", []string{"rauchen"}, map[string]bool{"rauchen": true}},
		{"No longer plays guitar since the accident", []string{"play", "guitar"}, map[string]bool{"play": true, "guitar": true}},
		{"User plays guitar, never liked jazz", []string{"play", "guitar", "jazz"}, map[string]bool{"jazz": true}},
		{"Doesn’t eat meat", []string{"meat"}, map[string]bool{"meat": true}},
		{"kein Kaffee nach acht", []string{"kaffee"}, map[string]bool{"kaffee": true}},
		{"never said a word about it, but loves tea", []string{"tea"}, map[string]bool{}},
		{"nothing here about knot tying", []string{"tying"}, map[string]bool{}},
		{"keineswegs Kaffee", []string{"kaffee"}, map[string]bool{}},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, negatedWords(tt.text, tt.words))
		})
	}
}

func TestCheckUnrelatedNegationStillSupports(t *testing.T) {
	store := memstore.NewMemoryStore()
	_, err := store.Add("User plays guitar, never liked jazz", []string{"guitar", "jazz"})
	require.NoError(t, err)

	res := New(store).Check(context.Background(), "You told me you play guitar", "")
	require.Len(t, res.Claims, 1)
	assert.Equal(t, StatusSupported, res.Claims[0].Status)
	assert.Equal(t, "User plays guitar, never liked jazz guitar jazz", res.Claims[0].Evidence)
	assert.False(t, res.Modified)

	res = New(store).Check(context.Background(), "You told me you love jazz", "")
	require.Len(t, res.Claims, 1)
	assert.Equal(t, StatusContradicted, res.Claims[0].Status)
	assert.True(t, res.Modified)
}

func TestCheckNegatedTagDoesNotSupport(t *testing.T) {
	store := memstore.NewMemoryStore()
	_, err := store.Add("Quit the band last year", []string{"band"})
	require.NoError(t, err)

	res := New(store).Check(context.Background(), "You mentioned your band", "")
	require.Len(t, res.Claims, 1)
	assert.Equal(t, StatusContradicted, res.Claims[0].Status)
}

func TestCheckEmitsEventWithoutGradedClaims(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := &events.Recorder{}

	res := New(nil, WithEventBus(rec)).Check(ctx, "I remember you told me about your guitar hobby", "")
	assert.Empty(t, res.Claims)
	assert.False(t, res.Modified)

	evs := rec.OfType(events.TypeClaimsVerified)
	require.Len(t, evs, 1)
	assert.Equal(t, 0, evs[0].Data["claims"])
	assert.Equal(t, false, evs[0].Data["modified"])

	New(nil, WithEventBus(rec)).Check(context.Background(), "The weather is nice today", "")
	assert.Len(t, rec.OfType(events.TypeClaimsVerified), 1, "replies without a memory reference emit nothing")
}
