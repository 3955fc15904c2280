// Package fakes provides test doubles for the CloudTruth API surface.
//
// FakeCloudTruth implements api.API in memory. It keeps value history per
// environment so as-of queries, inheritance and template evaluation behave
// like the server. Fakes are manually implemented (not generated) to provide
// precise control over test behavior.
//
// Usage:
//
//	fake := fakes.NewFakeCloudTruth().
//	    WithEnvironment("production", "default").
//	    WithProject("app", "").
//	    WithParameter("app", "DB_HOST", fakes.ParamOpts{}).
//	    WithValue("app", "DB_HOST", "production", "db.prod")
//	cfg := testutil.NewTestConfig(t).WithClient(fake).Build()
package fakes
