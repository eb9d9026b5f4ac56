// Package harness runs statement scenarios written in YAML.
//
// A scenario names a cube definition, declares statement parameters,
// describes an expression tree and binds parameter values. The harness
// prepares and executes the statement under a deterministic clock and
// trace id, then checks the outcome against the expect clause and, in
// tests, against a golden snapshot.
//
// # Scenario Format
//
//	name: filter-limit
//	description: "Items selling more than a bound parameter"
//	cube: ../cubes/sales.yaml
//	parameters:
//	  - name: Limit
//	    type: numeric
//	    default: 10
//	bindings:
//	  Limit: 15
//	expression:
//	  call: Filter
//	  args:
//	    - {call: Members, syntax: property, args: ["[Product].[Item]"]}
//	    - call: ">"
//	      syntax: infix
//	      args:
//	        - {call: CurrentMember, syntax: property, args: ["[Product]"]}
//	        - {param: Limit}
//	expect:
//	  state: DONE
//	  result: "{([Product].[Fruit].[Apple])}"
//
// Parameter types are numeric, integer, string, boolean, datetime, member
// and set. Member and set parameters name their hierarchy. Bindings for
// them are unique names, or lists of unique names for sets.
//
// # Golden Files
//
// RunWithGolden compares the outcome snapshot with
// testdata/golden/<name>.golden. To regenerate:
//
//	go test ./internal/harness -update
package harness
