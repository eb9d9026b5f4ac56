// Package olap declares the catalog contracts the calc core consumes.
//
// Dimensions, hierarchies, levels and members are owned by the schema layer
// and arrive here already resolved. The core never mutates them and only
// relies on identity (unique names) and on the navigation methods below.
//
// This package imports nothing internal. Every other package may import it.
package olap
