package retrieval

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// DefaultChunkSize is the chunk length in characters.
const DefaultChunkSize = 1000

// Chunk splits text into consecutive non-overlapping pieces of at most size
// characters. Whitespace-only pieces are dropped.
func Chunk(text string, size int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	runes := []rune(text)
	var chunks []string
	for start := 0; start < len(runes); start += size {
		end := min(start+size, len(runes))
		piece := string(runes[start:end])
		if strings.TrimSpace(piece) == "" {
			continue
		}
		chunks = append(chunks, piece)
	}
	return chunks
}

// ChunkID returns the stable identifier of chunk i of source.
func ChunkID(source string, i int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(source+"#"+strconv.Itoa(i))).String()
}
