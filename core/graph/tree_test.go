package graph

import (
	"testing"

	"github.com/siherrmann/wikigraph/model"
	"github.com/stretchr/testify/assert"
)

func TestRenderMarkdown(t *testing.T) {
	root := page("root", "", "Documentation Root")
	auth := page("auth", "root", "Authentication")
	sso := page("sso", "auth", "SSO Setup")
	sso.Metadata = model.Metadata{"url": "https://wiki/sso"}
	oauth := page("oauth", "auth", "OAuth Guide")
	hr := &model.DocumentNode{ID: "hr", SpaceID: "HR", Title: "People"}

	h := NewHierarchy([]*model.DocumentNode{root, auth, sso, oauth, hr})

	t.Run("Renders nested list with highlight", func(t *testing.T) {
		rendered := h.RenderMarkdown("ENG", TreeOptions{Highlight: map[string]bool{"sso": true}})
		expected := "- [Documentation Root](/wiki/pages/root)\n" +
			"  - [Authentication](/wiki/pages/auth)\n" +
			"    - [OAuth Guide](/wiki/pages/oauth)\n" +
			"    - **[SSO Setup](https://wiki/sso)**"
		assert.Equal(t, expected, rendered)
	})

	t.Run("Max depth cuts deeper levels", func(t *testing.T) {
		rendered := h.RenderSubtree("root", TreeOptions{MaxDepth: 1})
		assert.Equal(t, "- [Documentation Root](/wiki/pages/root)\n  - [Authentication](/wiki/pages/auth)", rendered)
	})

	t.Run("Empty space renders all roots", func(t *testing.T) {
		rendered := h.RenderMarkdown("", TreeOptions{})
		assert.Contains(t, rendered, "- [People](/wiki/pages/hr)")
		assert.Contains(t, rendered, "- [Documentation Root](/wiki/pages/root)")
	})

	t.Run("Unknown subtree root renders nothing", func(t *testing.T) {
		assert.Equal(t, "", h.RenderSubtree("missing", TreeOptions{}))
	})
}
