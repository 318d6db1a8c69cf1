package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wildlifecore/pkg/domain"
)

func TestSearchNumberRangeIsStrictlyBetween(t *testing.T) {
	ctx := context.Background()
	f := newBirds(t)
	f.addBird(t, "Wren", "15")
	robin := f.addBird(t, "Robin", "15.0001")
	jay := f.addBird(t, "Jay", "017.50")
	f.addBird(t, "Crow", "30.0")
	f.addBird(t, "Heron", "1,800")
	tern := f.addBird(t, "Tern", "29.99")

	got, err := f.svc.SearchNumber(ctx, NumberQuery{FieldID: f.wingspan.ID, Min: ptr("15"), Max: ptr("30")})
	require.NoError(t, err)
	assert.Equal(t, []int64{robin.ID, jay.ID, tern.ID}, recordIDs(got))

	got, err = f.svc.SearchNumber(ctx, NumberQuery{FieldID: f.wingspan.ID, Min: ptr("1000")})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Heron", got[0].Name)

	got, err = f.svc.SearchNumber(ctx, NumberQuery{FieldID: f.wingspan.ID, Max: ptr("15.0")})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearchNumberExact(t *testing.T) {
	ctx := context.Background()
	f := newBirds(t)
	jay := f.addBird(t, "Jay", "17")
	f.addBird(t, "Crow", "30")

	got, err := f.svc.SearchNumber(ctx, NumberQuery{FieldID: f.wingspan.ID, Exact: ptr("017.000")})
	require.NoError(t, err)
	assert.Equal(t, []int64{jay.ID}, recordIDs(got))
}

func TestSearchNumberRejectsBadQueries(t *testing.T) {
	ctx := context.Background()
	f := newBirds(t)
	_, err := f.svc.SearchNumber(ctx, NumberQuery{FieldID: f.wingspan.ID, Exact: ptr("17"), Min: ptr("15")})
	assert.True(t, domain.IsInvalidArgument(err), "exact with min: %v", err)
	_, err = f.svc.SearchNumber(ctx, NumberQuery{FieldID: f.wingspan.ID})
	assert.True(t, domain.IsInvalidArgument(err))
	_, err = f.svc.SearchNumber(ctx, NumberQuery{FieldID: f.wingspan.ID, Min: ptr("lots")})
	assert.True(t, domain.IsInvalidArgument(err))
	_, err = f.svc.SearchNumber(ctx, NumberQuery{FieldID: f.habitat.ID, Min: ptr("1")})
	assert.True(t, domain.IsInvalidArgument(err), "text field: %v", err)
	_, err = f.svc.SearchNumber(ctx, NumberQuery{FieldID: 999, Min: ptr("1")})
	assert.True(t, domain.IsNotFound(err))
}

func TestSearchTextCaseInsensitiveAndScoped(t *testing.T) {
	ctx := context.Background()
	f := newBirds(t)
	reptiles, err := f.svc.CreateCategory(ctx, "Reptiles", &f.animals.ID)
	require.NoError(t, err)
	plants, err := f.svc.CreateCategory(ctx, "Plants", nil)
	require.NoError(t, err)
	heron, err := f.svc.CreateRecord(ctx, RecordInput{Name: "Heron", ScientificName: "Ardea cinerea", CategoryID: f.birds.ID, Values: map[string]string{"Habitat": "Coastal WETLANDS", "Wingspan": "180"}})
	require.NoError(t, err)
	turtle, err := f.svc.CreateRecord(ctx, RecordInput{Name: "Turtle", ScientificName: "Emys orbicularis", CategoryID: reptiles.ID, Values: map[string]string{"Habitat": "wetland ponds"}})
	require.NoError(t, err)
	_, err = f.svc.CreateRecord(ctx, RecordInput{Name: "Lizard", ScientificName: "Lacerta agilis", CategoryID: reptiles.ID, Values: map[string]string{"Habitat": "heath"}})
	require.NoError(t, err)

	got, err := f.svc.SearchText(ctx, TextQuery{FieldID: f.habitat.ID, Query: "WetLand"})
	require.NoError(t, err)
	assert.Equal(t, []int64{heron.ID, turtle.ID}, recordIDs(got))

	got, err = f.svc.SearchText(ctx, TextQuery{FieldID: f.habitat.ID, Query: "wetland", CategoryIDs: []int64{reptiles.ID}})
	require.NoError(t, err)
	assert.Equal(t, []int64{turtle.ID}, recordIDs(got))

	got, err = f.svc.SearchText(ctx, TextQuery{FieldID: f.habitat.ID, Query: "wetland", CategoryIDs: []int64{plants.ID}})
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = f.svc.SearchText(ctx, TextQuery{FieldID: f.habitat.ID, Query: "wetland", CategoryIDs: []int64{999}})
	require.NoError(t, err)
	assert.Empty(t, got, "an empty scope returns nothing, not everything")

	_, err = f.svc.SearchText(ctx, TextQuery{FieldID: f.wingspan.ID, Query: "1"})
	assert.True(t, domain.IsInvalidArgument(err))
}

func TestSearchNames(t *testing.T) {
	ctx := context.Background()
	f := newBirds(t)
	reptiles, err := f.svc.CreateCategory(ctx, "Reptiles", &f.animals.ID)
	require.NoError(t, err)
	heron := f.addBird(t, "Grey Heron", "180")
	gecko, err := f.svc.CreateRecord(ctx, RecordInput{Name: "Wall Gecko", ScientificName: "Tarentola MAURITANICA", CategoryID: reptiles.ID, Values: map[string]string{"Habitat": "walls"}})
	require.NoError(t, err)

	got, err := f.svc.SearchNames(ctx, NameQuery{Query: "heron"})
	require.NoError(t, err)
	assert.Equal(t, []int64{heron.ID}, recordIDs(got))

	got, err = f.svc.SearchNames(ctx, NameQuery{Query: "tarentola mauritanica"})
	require.NoError(t, err)
	assert.Equal(t, []int64{gecko.ID}, recordIDs(got))

	got, err = f.svc.SearchNames(ctx, NameQuery{Query: "GECKO", CategoryIDs: []int64{f.animals.ID}})
	require.NoError(t, err)
	assert.Equal(t, []int64{gecko.ID}, recordIDs(got))

	got, err = f.svc.SearchNames(ctx, NameQuery{Query: "e", CategoryIDs: []int64{f.birds.ID}})
	require.NoError(t, err)
	assert.Equal(t, []int64{heron.ID}, recordIDs(got))
}

func TestSearchMonthWraparound(t *testing.T) {
	ctx := context.Background()
	f := newBirds(t)
	breeding, err := f.svc.CreateField(ctx, FieldSpec{Name: "Breeding", Type: domain.FieldMonthRange, CategoryIDs: []int64{f.animals.ID}})
	require.NoError(t, err)
	create := func(name, months string) int64 {
		rec, err := f.svc.CreateRecord(ctx, RecordInput{Name: name, ScientificName: name, CategoryID: f.animals.ID, Values: map[string]string{"Habitat": "x", "Breeding": months}})
		require.NoError(t, err)
		return rec.ID
	}
	summer := create("Summer", "5-8")
	winter := create("Winter", "November-February")
	single := create("Single", "mar-mar")

	cases := []struct {
		month int
		want  []int64
	}{
		{1, []int64{winter}},
		{2, []int64{winter}},
		{3, []int64{single}},
		{4, nil},
		{5, []int64{summer}},
		{8, []int64{summer}},
		{10, nil},
		{11, []int64{winter}},
		{12, []int64{winter}},
	}
	for _, tc := range cases {
		got, err := f.svc.SearchMonth(ctx, MonthQuery{FieldID: breeding.ID, Month: tc.month})
		require.NoError(t, err)
		if tc.want == nil {
			assert.Empty(t, got, "month %d", tc.month)
			continue
		}
		assert.Equal(t, tc.want, recordIDs(got), "month %d", tc.month)
	}

	_, err = f.svc.SearchMonth(ctx, MonthQuery{FieldID: breeding.ID, Month: 13})
	assert.True(t, domain.IsInvalidArgument(err))
	_, err = f.svc.SearchMonth(ctx, MonthQuery{FieldID: f.habitat.ID, Month: 1})
	assert.True(t, domain.IsInvalidArgument(err))
	_, err = f.svc.SearchMonth(ctx, MonthQuery{FieldID: 999, Month: 1})
	assert.True(t, domain.IsNotFound(err))
}
