// Package types defines the data model shared across sweenv's components:
// the per-episode Task, the editor's OpenFile record, symbol index entries,
// and the diff engine's hunk and result shapes. Nothing in this package
// talks to a container or the filesystem — it exists so the other packages
// don't each invent their own copy of the same structs.
package types
