package query

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/kailas-cloud/mongomap/internal/mapping"
)

type team struct {
	ID   string `bson:"_id"`
	Name string `bson:"name"`
}

func (team) CollectionName() string { return "teams" }

type player struct {
	ID      bson.ObjectID `bson:"_id"`
	Name    string        `bson:"name"`
	Number  int           `bson:"number"`
	Address address       `bson:"address"`
	Team    *team         `bson:"team" mongo:"ref"`
	Club    *team         `bson:"club" mongo:"dbref"`
	Nick    *string       `bson:"nick"`
}

func (player) CollectionName() string { return "players" }

func exampleFilter(t *testing.T, ex Example) bson.D {
	t.Helper()
	f, err := ex.Filter(mapping.NewContext())
	require.NoError(t, err)
	return f
}

func TestExample_FlattensAndSkipsZeroValues(t *testing.T) {
	probe := player{
		Name:    "Ada",
		Address: address{City: city{Name: "Paris"}},
		Team:    &team{ID: "t1", Name: "ignored"},
		Club:    &team{ID: "c1"},
	}

	f := exampleFilter(t, ExampleOf(probe))
	assert.Equal(t, bson.D{
		{Key: "name", Value: "Ada"},
		{Key: "address.city.name", Value: "Paris"},
		{Key: "team", Value: "t1"},
		{Key: "club.$id", Value: "c1"},
	}, f)
}

func TestExample_StringMatchers(t *testing.T) {
	probe := &player{Name: "ad.a", Number: 7}

	cases := []struct {
		matcher ExampleMatcher
		want    any
	}{
		{MatchingAll(), "ad.a"},
		{MatchingAll().WithStringMatcher(MatchExact).WithIgnoreCase(), bson.Regex{Pattern: `^ad\.a$`, Options: "i"}},
		{MatchingAll().WithStringMatcher(MatchStarting), bson.Regex{Pattern: `^ad\.a`}},
		{MatchingAll().WithStringMatcher(MatchEnding), bson.Regex{Pattern: `ad\.a$`}},
		{MatchingAll().WithStringMatcher(MatchContaining).WithIgnoreCase("name"), bson.Regex{Pattern: `ad\.a`, Options: "i"}},
		{MatchingAll().WithStringMatcher(MatchRegex), bson.Regex{Pattern: "ad.a"}},
		{MatchingAll().WithMatcher("name", PropertyMatcher{StringMatcher: MatchStarting}), bson.Regex{Pattern: `^ad\.a`}},
	}
	for _, tc := range cases {
		f := exampleFilter(t, ExampleOf(probe).With(tc.matcher))
		require.Len(t, f, 2)
		assert.Equal(t, bson.E{Key: "name", Value: tc.want}, f[0])
		assert.Equal(t, bson.E{Key: "number", Value: 7}, f[1])
	}
}

func TestExample_MatchingAny(t *testing.T) {
	f := exampleFilter(t, ExampleOf(player{Name: "Ada", Number: 7}).With(MatchingAny()))
	assert.Equal(t, bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "name", Value: "Ada"}},
		bson.D{{Key: "number", Value: 7}},
	}}}, f)
}

func TestExample_IgnoredPathsAndNulls(t *testing.T) {
	m := MatchingAll().WithIgnorePaths("number", "team", "club").WithIncludeNullValues()
	f := exampleFilter(t, ExampleOf(player{Name: "Ada", Number: 7}).With(m))

	assert.Equal(t, bson.D{
		{Key: "name", Value: "Ada"},
		{Key: "nick", Value: nil},
	}, f)
}

func TestExample_EmptyProbe(t *testing.T) {
	assert.Equal(t, bson.D{}, exampleFilter(t, ExampleOf(player{})))

	var nilProbe *player
	_, err := ExampleOf(nilProbe).Filter(mapping.NewContext())
	assert.ErrorIs(t, err, ErrInvalidCriteria)
}

func TestExampleMatcher_IsImmutable(t *testing.T) {
	base := MatchingAll().WithMatcher("a", PropertyMatcher{StringMatcher: MatchEnding})
	_ = base.WithMatcher("b", PropertyMatcher{StringMatcher: MatchStarting})

	_, ok := base.properties["b"]
	assert.False(t, ok)
}

type crew struct {
	ID   uuid.UUID `bson:"_id"`
	Name string    `bson:"name"`
}

func (crew) CollectionName() string { return "crews" }

type ticket struct {
	ID    bson.ObjectID `bson:"_id"`
	Owner uuid.UUID     `bson:"owner"`
	Crew  *crew         `bson:"crew" mongo:"ref"`
	Spare *crew         `bson:"spare" mongo:"dbref"`
}

func (ticket) CollectionName() string { return "tickets" }

func TestExample_UUIDsUseStoredForm(t *testing.T) {
	owner := uuid.New()
	crewID := uuid.New()

	f := exampleFilter(t, ExampleOf(ticket{Owner: owner, Crew: &crew{ID: crewID}, Spare: &crew{ID: crewID}}))
	want := bson.Binary{Subtype: bson.TypeBinaryUUID, Data: crewID[:]}
	assert.Equal(t, bson.D{
		{Key: "owner", Value: bson.Binary{Subtype: bson.TypeBinaryUUID, Data: owner[:]}},
		{Key: "crew", Value: want},
		{Key: "spare.$id", Value: want},
	}, f)

	raw, err := bson.Marshal(f)
	require.NoError(t, err)
	subtype, _, ok := bson.Raw(raw).Lookup("owner").BinaryOK()
	require.True(t, ok)
	assert.Equal(t, bson.TypeBinaryUUID, subtype)
}
