// Package cms implements the data-plane engine of an embeddable, schema-driven
// headless CMS: a field registry and schema compiler that turn collection
// definitions into relational tables and validators, a CRUD engine with
// relation population, per-locale content, versioning and workflow stages, a
// filter/order/pagination query compiler, hook/access/transaction machinery,
// a realtime change log with SSE fan-out, a job queue abstraction, a search
// indexing pipeline, and a migration generator/runner.
//
// The engine only depends on abstract collaborators ([DB], [Queue],
// [Storage], [KV], [Mailer], [Logger], [Search], [Auth]); HTTP routing, a
// GUI admin panel, and concrete infrastructure drivers are left to the
// embedding application.
//
// # Quick start
//
//	reg := collection.NewRegistry()
//	posts := collection.New("posts", collection.Options{Versioning: true}).
//		AddField(field.Text("title", field.Required())).
//		AddField(field.Text("body", field.Localized()))
//	reg.Register(posts)
//
//	app, err := engine.New(cms.Config{DB: db, Logger: logger}, reg, engine.Options{})
//	if err != nil {
//		log.Fatal(err)
//	}
package cms
