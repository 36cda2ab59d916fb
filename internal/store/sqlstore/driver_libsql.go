//go:build libsql

package sqlstore

import _ "github.com/tursodatabase/go-libsql"

func init() {
	libsqlAvailable = true
}
