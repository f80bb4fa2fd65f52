package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/kailas-cloud/mongomap/internal/mapping"
)

type city struct {
	Name    string `bson:"name"`
	ZipCode string `bson:"zip"`
}

type address struct {
	City   city   `bson:"city"`
	Street string `bson:"street"`
}

type person struct {
	ID        bson.ObjectID `bson:"_id"`
	Firstname string        `bson:"firstname"`
	Lastname  string        `bson:"lastname"`
	Age       int           `bson:"age"`
	Active    bool          `bson:"active"`
	Birthday  time.Time     `bson:"birthday"`
	Address   address       `bson:"address"`
	Tags      []string      `bson:"tags"`
	Location  []float64     `bson:"location"`
	Domain    string        `bson:"domain"`
	Nickname  *string       `bson:"nick"`
}

func (person) CollectionName() string { return "people" }

func personEntity(t *testing.T) *mapping.Entity {
	t.Helper()
	e, err := mapping.NewContext().EntityOf(person{})
	require.NoError(t, err)
	return e
}

func derive(t *testing.T, method string, args ...any) (*PartTree, bson.D) {
	t.Helper()
	tree, err := ParsePartTree(method, personEntity(t))
	require.NoError(t, err)
	q, err := tree.Query(args...)
	require.NoError(t, err)
	f, err := q.Filter()
	require.NoError(t, err)
	return tree, f
}

func TestParsePartTree_Subjects(t *testing.T) {
	e := personEntity(t)
	cases := []struct {
		method   string
		subject  Subject
		limit    int64
		distinct bool
	}{
		{"findByLastname", SubjectFind, 0, false},
		{"readByLastname", SubjectFind, 0, false},
		{"countByLastname", SubjectCount, 0, false},
		{"existsByLastname", SubjectExists, 1, false},
		{"deleteByLastname", SubjectDelete, 0, false},
		{"removeByLastname", SubjectDelete, 0, false},
		{"findFirstByLastname", SubjectFind, 1, false},
		{"findTop10ByLastname", SubjectFind, 10, false},
		{"findFirst3ByLastname", SubjectFind, 3, false},
		{"findDistinctByLastname", SubjectFind, 0, true},
		{"findPeopleByLastname", SubjectFind, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.method, func(t *testing.T) {
			tree, err := ParsePartTree(tc.method, e)
			require.NoError(t, err)
			assert.Equal(t, tc.subject, tree.Subject)
			assert.Equal(t, tc.limit, tree.Limit)
			assert.Equal(t, tc.distinct, tree.Distinct)
			require.Len(t, tree.Ors, 1)
			assert.Equal(t, "lastname", tree.Ors[0][0].Path)
		})
	}
}

func TestParsePartTree_Errors(t *testing.T) {
	e := personEntity(t)
	for _, method := range []string{
		"lookupByLastname",
		"findByUnknown",
		"findBy",
		"findByLastnameOrderBy",
		"findByAddressCountry",
	} {
		_, err := ParsePartTree(method, e)
		assert.ErrorIs(t, err, ErrInvalidMethod, method)
	}
}

func TestParsePartTree_NoCriteria(t *testing.T) {
	e := personEntity(t)

	tree, err := ParsePartTree("findAll", e)
	require.NoError(t, err)
	assert.Empty(t, tree.Ors)

	tree, err = ParsePartTree("findAllOrderByAgeDesc", e)
	require.NoError(t, err)
	assert.Empty(t, tree.Ors)
	assert.Equal(t, []Order{{Path: "age", Direction: Desc}}, tree.Sort)
}

func TestDerive_SimpleAndOr(t *testing.T) {
	_, f := derive(t, "findByFirstnameAndLastname", "Dave", "Matthews")
	assert.Equal(t, bson.D{{Key: "firstname", Value: "Dave"}, {Key: "lastname", Value: "Matthews"}}, f)

	_, f = derive(t, "findByFirstnameOrAgeGreaterThan", "Dave", 30)
	assert.Equal(t, bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "firstname", Value: "Dave"}},
		bson.D{{Key: "age", Value: bson.D{{Key: "$gt", Value: 30}}}},
	}}}, f)
}

func TestDerive_RepeatedPathUsesAnd(t *testing.T) {
	_, f := derive(t, "findByAgeGreaterThanAndAgeLessThan", 18, 65)
	assert.Equal(t, bson.D{{Key: "$and", Value: bson.A{
		bson.D{{Key: "age", Value: bson.D{{Key: "$gt", Value: 18}}}},
		bson.D{{Key: "age", Value: bson.D{{Key: "$lt", Value: 65}}}},
	}}}, f)
}

func TestDerive_NestedPaths(t *testing.T) {
	_, f := derive(t, "findByAddressCityName", "Berlin")
	assert.Equal(t, bson.D{{Key: "address.city.name", Value: "Berlin"}}, f)

	_, f = derive(t, "findByAddress_City_ZipCode", "10115")
	assert.Equal(t, bson.D{{Key: "address.city.zip", Value: "10115"}}, f)
}

func TestDerive_Keywords(t *testing.T) {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		method string
		args   []any
		want   bson.E
	}{
		{"findByAgeLessThanEqual", []any{3}, bson.E{Key: "age", Value: bson.D{{Key: "$lte", Value: 3}}}},
		{"findByAgeGreaterThanEqual", []any{3}, bson.E{Key: "age", Value: bson.D{{Key: "$gte", Value: 3}}}},
		{"findByBirthdayBefore", []any{day}, bson.E{Key: "birthday", Value: bson.D{{Key: "$lt", Value: day}}}},
		{"findByBirthdayAfter", []any{day}, bson.E{Key: "birthday", Value: bson.D{{Key: "$gt", Value: day}}}},
		{"findByAgeBetween", []any{1, 9}, bson.E{Key: "age", Value: bson.D{{Key: "$gt", Value: 1}, {Key: "$lt", Value: 9}}}},
		{"findByAgeIn", []any{[]int{1, 2}}, bson.E{Key: "age", Value: bson.D{{Key: "$in", Value: bson.A{1, 2}}}}},
		{"findByAgeNotIn", []any{[]int{3}}, bson.E{Key: "age", Value: bson.D{{Key: "$nin", Value: bson.A{3}}}}},
		{"findByLastnameNot", []any{"x"}, bson.E{Key: "lastname", Value: bson.D{{Key: "$ne", Value: "x"}}}},
		{"findByFirstnameLike", []any{"av"}, bson.E{Key: "firstname", Value: bson.D{{Key: "$regex", Value: bson.Regex{Pattern: "av"}}}}},
		{"findByFirstnameLike", []any{"Da*"}, bson.E{Key: "firstname", Value: bson.D{{Key: "$regex", Value: bson.Regex{Pattern: "^Da.*"}}}}},
		{"findByFirstnameNotLike", []any{"*ve"}, bson.E{Key: "firstname", Value: bson.D{{Key: "$not", Value: bson.Regex{Pattern: ".*ve$"}}}}},
		{"findByFirstnameStartingWith", []any{"D."}, bson.E{Key: "firstname", Value: bson.D{{Key: "$regex", Value: bson.Regex{Pattern: `^D\.`}}}}},
		{"findByFirstnameEndingWith", []any{"e"}, bson.E{Key: "firstname", Value: bson.D{{Key: "$regex", Value: bson.Regex{Pattern: "e$"}}}}},
		{"findByFirstnameContaining", []any{"av"}, bson.E{Key: "firstname", Value: bson.D{{Key: "$regex", Value: bson.Regex{Pattern: "av"}}}}},
		{"findByTagsContaining", []any{"go"}, bson.E{Key: "tags", Value: bson.D{{Key: "$in", Value: bson.A{"go"}}}}},
		{"findByTagsNotContaining", []any{"go"}, bson.E{Key: "tags", Value: bson.D{{Key: "$nin", Value: bson.A{"go"}}}}},
		{"findByNicknameIsNull", nil, bson.E{Key: "nick", Value: nil}},
		{"findByNicknameIsNotNull", nil, bson.E{Key: "nick", Value: bson.D{{Key: "$ne", Value: nil}}}},
		{"findByActiveTrue", nil, bson.E{Key: "active", Value: true}},
		{"findByActiveIsFalse", nil, bson.E{Key: "active", Value: false}},
		{"findByNicknameExists", []any{true}, bson.E{Key: "nick", Value: bson.D{{Key: "$exists", Value: true}}}},
		{"findByLastnameRegex", []any{"^M"}, bson.E{Key: "lastname", Value: bson.D{{Key: "$regex", Value: bson.Regex{Pattern: "^M"}}}}},
		{"findByDomain", []any{"example.org"}, bson.E{Key: "domain", Value: "example.org"}},
		{"findByLastnameIgnoreCase", []any{"m.x"}, bson.E{Key: "lastname", Value: bson.D{{Key: "$regex", Value: bson.Regex{Pattern: `^m\.x$`, Options: "i"}}}}},
		{"findByLocationNear", []any{[]float64{1, 2}}, bson.E{Key: "location", Value: bson.D{{Key: "$near", Value: bson.D{
			{Key: "$geometry", Value: bson.D{{Key: "type", Value: "Point"}, {Key: "coordinates", Value: bson.A{1.0, 2.0}}}},
		}}}}},
	}
	for _, tc := range cases {
		t.Run(tc.method, func(t *testing.T) {
			_, f := derive(t, tc.method, tc.args...)
			require.Len(t, f, 1)
			assert.Equal(t, tc.want, f[0])
		})
	}
}

func TestDerive_AllIgnoreCase(t *testing.T) {
	_, f := derive(t, "findByFirstnameAndLastnameAllIgnoreCase", "dave", "m")
	assert.Equal(t, bson.D{
		{Key: "firstname", Value: bson.D{{Key: "$regex", Value: bson.Regex{Pattern: "^dave$", Options: "i"}}}},
		{Key: "lastname", Value: bson.D{{Key: "$regex", Value: bson.Regex{Pattern: "^m$", Options: "i"}}}},
	}, f)
}

func TestDerive_OrderAndLimit(t *testing.T) {
	tree, err := ParsePartTree("findTop2ByActiveTrueOrderByLastnameAscAgeDesc", personEntity(t))
	require.NoError(t, err)

	q, err := tree.Query()
	require.NoError(t, err)
	opts := q.FindOptions()
	assert.Equal(t, bson.D{{Key: "lastname", Value: int32(1)}, {Key: "age", Value: int32(-1)}}, opts.Sort)
	assert.Equal(t, int64(2), opts.Limit)
}

func TestDerive_ArgumentCount(t *testing.T) {
	tree, err := ParsePartTree("findByAgeBetween", personEntity(t))
	require.NoError(t, err)
	assert.Equal(t, 2, tree.ArgCount())

	_, err = tree.Query(1)
	assert.ErrorIs(t, err, ErrInvalidMethod)

	tree, err = ParsePartTree("findByAgeIn", personEntity(t))
	require.NoError(t, err)
	_, err = tree.Query(5)
	assert.ErrorIs(t, err, ErrInvalidCriteria)
}
