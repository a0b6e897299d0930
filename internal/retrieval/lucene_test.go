package retrieval

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeLucene_EscapesEverySpecial(t *testing.T) {
	for _, r := range luceneSpecials {
		got := EscapeLucene(string(r))
		assert.Equal(t, `\`+string(r), got, "char %q must be escaped", r)
	}
}

func TestEscapeLucene_PlainTextUntouched(t *testing.T) {
	assert.Equal(t, "how does auth work", EscapeLucene("how does auth work"))
}

func TestEscapeLucene_MixedQuery(t *testing.T) {
	got := EscapeLucene(`get_user(id: int) -> User`)
	assert.Equal(t, `get_user\(id\: int\) \-> User`, got)
	assert.False(t, strings.ContainsAny(stripEscapes(got), `():`), "no unescaped operators remain")
}

func stripEscapes(s string) string {
	var b strings.Builder
	skip := false
	for _, r := range s {
		if skip {
			skip = false
			continue
		}
		if r == '\\' {
			skip = true
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
