// Package value models the Sass values exchanged with custom functions and
// their JSON wire shape, tagged by a "_type" field.
package value
