/*
Package dsl provides a Go DSL for programmatically constructing story graphs.

It lets tests and tools describe a layer's nodes and edges with a fluent
builder instead of hand-written JSON documents. The result is a
ports.Importer, so it plugs straight into Editor.Import.

Example usage:

	b := dsl.New()

	b.Add("start").
		Narrative("You wake up in a dark room.").
		Go("door")

	b.Add("door").
		Choice("Open the door").
		At(250, 0).
		When("hall", domain.Condition{ID: "c1", Type: "flag", Params: map[string]any{"name": "key"}})

	b.Add("hall").
		Narrative("A long hall.").
		At(500, 0)

	importer, err := b.Build()
	if err != nil {
		// ...
	}
	ids, err := editor.Import(ctx, importer)
*/
package dsl
