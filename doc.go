// Package mongomap maps Go structs to MongoDB documents.
//
// A document type is a struct that names its collection. Field keys follow the `bson` tag,
// mapping directives live in the `mongo` tag:
//
//	type Person struct {
//	    ID        bson.ObjectID          `bson:"_id"`
//	    Email     string                 `bson:"email" mongo:"unique"`
//	    Lastname  string                 `bson:"lastname" mongo:"index;desc"`
//	    Bio       string                 `bson:"bio" mongo:"textIndexed:2"`
//	    Employer  *mongomap.Lazy[*Company] `bson:"employer" mongo:"ref:lazy"`
//	    Embedding []float64              `bson:"embedding" mongo:"vector:1536,cosine"`
//	}
//
//	func (Person) CollectionName() string { return "people" }
//
// # Repositories
//
//	client, _ := mongomap.New(ctx,
//	    mongomap.WithURI("mongodb://localhost:27017"),
//	    mongomap.WithDatabase("app"),
//	    mongomap.WithAutoIndexCreation(true),
//	)
//	people, _ := mongomap.NewRepository[Person](ctx, client)
//	_ = people.Save(ctx, &Person{Email: "dave@example.com", Lastname: "Matthews"})
//
//	byName, _ := people.FindBy(ctx, "findByLastnameOrderByEmailAsc", "Matthews")
//	adults, _ := people.Find(ctx, mongomap.NewQuery(mongomap.Where("age").Gte(18)))
//	probe, _ := people.FindByExample(ctx, mongomap.ExampleOf(Person{Lastname: "Matthews"}))
//
// # Vector search
//
// With an Embedder configured, query text is embedded and run as $vectorSearch against the
// index derived from the vector directives:
//
//	hits, _ := people.VectorSearch(ctx, "jazz musicians", 10)
//	hits, _ = people.Search().Query("jazz").Mode(mongomap.ModeHybrid).Limit(10).Do(ctx)
package mongomap
