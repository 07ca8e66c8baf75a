package markdown

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const doc = `---
subject: email.welcome.subject
---
Hi **Ada**,

Start here: https://thrive.test/app
`

func TestParseWithFrontmatter(t *testing.T) {
	html, meta, err := NewParser().ParseWithFrontmatter([]byte(doc))
	require.NoError(t, err)
	require.Equal(t, "email.welcome.subject", meta["subject"])
	require.Contains(t, string(html), "<strong>Ada</strong>")
	require.Contains(t, string(html), `<a href="https://thrive.test/app">`)
	require.NotContains(t, string(html), "subject:")
}

func TestParseWithoutFrontmatter(t *testing.T) {
	_, meta, err := NewParser().ParseWithFrontmatter([]byte("plain"))
	require.NoError(t, err)
	require.Empty(t, meta)
}

func TestStripFrontmatter(t *testing.T) {
	require.Equal(t, "Hi **Ada**,\n\nStart here: https://thrive.test/app\n", string(StripFrontmatter([]byte(doc))))
	require.Equal(t, "no meta", string(StripFrontmatter([]byte("no meta"))))
}
