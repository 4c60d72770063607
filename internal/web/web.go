// Package web embeds the single-file browser client.
package web

import _ "embed"

//go:embed index.html
var index []byte

// Index returns the client page.
func Index() []byte {
	return index
}
