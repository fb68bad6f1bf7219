//go:build cgo

package sqlite

// CGOEnabled reports whether the sqlite registry is built with cgo support.
const CGOEnabled = true
