package retrieval

import "strings"

// luceneSpecials are the characters with operator meaning in Lucene query
// syntax. User queries are literal text, so each occurrence is escaped
// before reaching the fulltext index.
const luceneSpecials = `+-&|!(){}[]^"~*?:\/`

// EscapeLucene backslash-escapes Lucene operator characters in a raw query.
func EscapeLucene(query string) string {
	var b strings.Builder
	b.Grow(len(query))
	for _, r := range query {
		if strings.ContainsRune(luceneSpecials, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
