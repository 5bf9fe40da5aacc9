//go:build !sqlite3_cgo

package db

// pure-Go driver (wasm build of SQLite), no cgo toolchain needed
import (
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

const (
	driverID   = "ncruces/go-sqlite3"
	driverName = "sqlite3"
)
