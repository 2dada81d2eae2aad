package store

import (
	"fmt"

	"github.com/google/uuid"
)

// PointID is the stable identity of a chunk's vector: a name-based UUID of
// "project:path:index". Re-indexing a file therefore overwrites rather than
// duplicates its points.
func PointID(project, path string, index int) string {
	key := fmt.Sprintf("%s:%s:%d", project, path, index)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}
