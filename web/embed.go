package web

import (
	"embed"
	"io/fs"
)

//go:embed static
var static embed.FS

// DocumentName is the bundled fallback chat document.
const DocumentName = "chatData.json"

// StatusName is the bundled game status document used for the connectivity
// check when no game URL is configured.
const StatusName = "response.json"

// FS returns the page assets rooted at the site root.
func FS() fs.FS {
	sub, err := fs.Sub(static, "static")
	if err != nil {
		panic(err)
	}
	return sub
}
