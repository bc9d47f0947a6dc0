// Package contenttype detects the MIME type of local files.
package contenttype

import (
	"github.com/gabriel-vasile/mimetype"
)

// DefaultType is used whenever detection fails. Detection failure never
// aborts an upload.
const DefaultType = "text/plain"

// Detect returns the MIME type of the file at path, falling back to
// DefaultType when the file cannot be inspected.
func Detect(path string) string {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return DefaultType
	}
	return mtype.String()
}
