package indexer

import (
	"strings"

	"indexer/internal/constants"
)

var tokenReplacer = strings.NewReplacer(
	"/", "_",
	`\`, "_",
	"|", "_",
	".", "_",
	":", "_",
	",", "_",
	"%", "_",
	"!", "_",
	"$", "_",
)

// Tokenize maps an entity identifier to a token usable both as a file name
// fragment and as a URL path segment. Distinct identifiers may collide.
func Tokenize(id string) (string, bool) {
	if id == "" {
		return "", false
	}
	return tokenReplacer.Replace(id), true
}

func ArchiveName(token string) string {
	return constants.ArchiveFilePrefix + token + constants.ArchiveFileSuffix
}
