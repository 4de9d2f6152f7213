package fetch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractMainText_WithMainElement(t *testing.T) {
	html := `
	<html>
		<body>
			<nav>Navigation</nav>
			<main>
				<h1>Main Content</h1>
				<p>This is the important text.</p>
			</main>
			<footer>Footer</footer>
		</body>
	</html>`

	text, err := ExtractMainText(html, JobPostingSelectors())
	require.NoError(t, err)
	assert.Contains(t, text, "Main Content")
	assert.Contains(t, text, "important text")
	assert.NotContains(t, text, "Navigation")
	assert.NotContains(t, text, "Footer")
}

func TestExtractMainText_FallbackToBody(t *testing.T) {
	html := `<html><body><div>Some content here.</div></body></html>`

	text, err := ExtractMainText(html, []string{".missing"})
	require.NoError(t, err)
	assert.Equal(t, "Some content here.", text)
}

func TestHTMLToText_JobPosting(t *testing.T) {
	html := `
	<html>
		<body>
			<div class="sidebar">Sidebar junk</div>
			<div class="job-description">
				<h2>Requirements</h2>
				<ul><li>5+ years with Python</li><li>Docker and AWS</li></ul>
				<p>Nice to have:<br>Kubernetes</p>
			</div>
		</body>
	</html>`

	text, err := HTMLToText(html)
	require.NoError(t, err)
	assert.NotContains(t, text, "Sidebar junk")
	assert.Contains(t, text, "Requirements\n")
	assert.Contains(t, text, "- 5+ years with Python\n- Docker and AWS")
	assert.Contains(t, text, "Nice to have:\nKubernetes")
}

func TestLooksLikeHTML(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"<p>Python</p><ul><li>Go</li></ul>", true},
		{"<div>Senior engineer</div><br>", true},
		{"Requirements: Python, C++ <3 years", false},
		{"Plain text job description", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LooksLikeHTML(tt.text), tt.text)
	}
}
