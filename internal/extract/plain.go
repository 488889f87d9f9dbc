package extract

import "strings"

// extractPlain decodes content as UTF-8, replacing invalid sequences.
func extractPlain(content []byte) (string, error) {
	return strings.ToValidUTF8(string(content), "\ufffd"), nil
}
