// Package output renders command results as a table, JSON or YAML.
//
// Tables are built from structs: the json tag names a column, a
// `table:"-"` tag hides a field and `table:"wide"` shows it only in wide
// mode.
package output
