// Package schema validates project snapshots before they are loaded.
//
// ValidateProject walks every layer of a snapshot and reports all broken
// structural rules at once as an *AggregateError whose entries are
// *ValidationError values keyed by a path:
//
//	err := schema.ValidateProject(p)
//	for _, e := range schema.ValidationErrors(err) {
//	    log.Println(e) // layers[L1].nodes[n4].startingNodes: expected 2 ports (got 1)
//	}
//
// Edge conditions are opaque to the editor, but their parameters can be
// checked against per-type schemas built from type strings:
//
//	conds, _ := schema.ParseConditionSchemas(map[string]map[string]string{
//	    "variable_equals": {"variable": "string", "value": "int"},
//	    "has_items":       {"items": "[string]"},
//	})
//	err := schema.ValidateProject(p, schema.WithConditionSchemas(conds))
package schema
