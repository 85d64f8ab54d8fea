// Package content embeds the default challenge pack.
package content

import (
	"embed"
	"io/fs"
)

//go:embed challenges
var challengesFS embed.FS

// Challenges returns the embedded challenge pack rooted at its directory.
func Challenges() fs.FS {
	sub, err := fs.Sub(challengesFS, "challenges")
	if err != nil {
		panic("content: failed to create sub filesystem: " + err.Error())
	}
	return sub
}
