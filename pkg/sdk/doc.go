// Package sdk is a Go client for the mongomap admin API served by `mongomap serve`.
//
// It lists and drops collections, administers regular and Atlas search indexes, runs vector,
// text and hybrid searches and reads embedding usage:
//
//	client, _ := sdk.New("http://localhost:8080", sdk.WithAPIKey("secret"))
//	names, _ := client.Collections().List(ctx)
//	_ = client.Indexes("people").Hide(ctx, "lastname_1")
//
//	res, _ := client.Search("articles").Do(ctx, sdk.SearchRequest{Query: "go books", Limit: 5})
//	for _, hit := range res.Hits {
//	    var a Article
//	    _ = hit.Decode(&a)
//	}
package sdk
