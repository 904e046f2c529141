package analysis

import (
	"path/filepath"
	"sort"

	"github.com/steventanyang/deployable/internal/types"
)

// ChunkFiles splits files into order-preserving batches of at most size
// files each. The last chunk may be shorter. A size below 1 is treated
// as 1 so no caller input can produce an empty partition of non-empty
// files.
func ChunkFiles(files []types.FileContent, size int) [][]types.FileContent {
	if size < 1 {
		size = 1
	}

	chunks := make([][]types.FileContent, 0, (len(files)+size-1)/size)
	for i := 0; i < len(files); i += size {
		end := i + size
		if end > len(files) {
			end = len(files)
		}
		chunks = append(chunks, files[i:end])
	}
	return chunks
}

// GroupByExtension reorders files so that files with the same extension
// sit next to each other before chunking, keeping similar files in the
// same model call. Order within an extension group is preserved.
func GroupByExtension(files []types.FileContent) []types.FileContent {
	grouped := make([]types.FileContent, len(files))
	copy(grouped, files)

	sort.SliceStable(grouped, func(i, j int) bool {
		return filepath.Ext(grouped[i].Path) < filepath.Ext(grouped[j].Path)
	})
	return grouped
}
