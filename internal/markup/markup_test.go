package markup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderListEscapesItems(t *testing.T) {
	out, err := Render("list", []string{"a<b", "c"})
	require.NoError(t, err)
	assert.Equal(t, "<ul><li>a&lt;b</li><li>c</li></ul>", out)
}

func TestSafeURL(t *testing.T) {
	assert.Equal(t, "https://charts.example.com/a.png", string(SafeURL(" https://charts.example.com/a.png ")))
	assert.Equal(t, "data:image/png;base64,AAAA", string(SafeURL("data:image/png;base64,AAAA")))
	assert.Empty(t, string(SafeURL("javascript:alert(1)")))
	assert.Empty(t, string(SafeURL("/relative.png")))
}

func TestImagesKeepDataURIs(t *testing.T) {
	out, err := Render("images", []Image{{URL: SafeURL("data:image/png;base64,AAAA"), Alt: "roof"}})
	require.NoError(t, err)
	assert.Contains(t, out, `src="data:image/png;base64,AAAA"`)
	assert.Contains(t, out, `alt="roof"`)
}

func TestComment(t *testing.T) {
	assert.Equal(t, "<!-- header -->", Comment("header"))
	assert.Equal(t, "<!-- header-image -->", Comment("header-image"))
}
