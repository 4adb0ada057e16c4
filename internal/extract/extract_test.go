package extract

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const boardYAML = `
defaults:
  limit: 10
  headers:
    Accept-Language: en-US
sources:
  - name: board
    vertical: jobs
    url: "https://board.example.com/search?q={{urlquery .Text}}&l={{urlquery .Location}}"
    base_url: https://board.example.com
    items: "ul.results li"
    fields:
      title:
        selector: "h3"
        transforms: [collapse]
        required: true
      company:
        selector: ".company"
        transforms: [collapse]
      url:
        selector: "a"
        attr: href
        transforms: [absurl]
        required: true
      summary:
        selector: ".summary"
        transforms: [text]
      kind:
        const: "full-time"
  - name: ld
    vertical: jobs
    mode: jsonld
    jsonld_type: JobPosting
    url: "https://ld.example.com/jobs/{{slug .Text}}"
    enabled: false
    fields:
      title:
        required: true
      company:
        selector: company
        transforms: [lower]
`

const boardHTML = `<html><body><ul class="results">
  <li><h3>  Go   Engineer </h3><span class="company">Acme</span><a href="/jobs/1?trk=x">view</a><div class="summary">Build &amp; ship <b>APIs</b></div></li>
  <li><h3></h3><a href="/jobs/2">missing title</a></li>
  <li><h3>Platform Engineer</h3><span class="company">Globex</span><a href="https://other.example.com/p/3">view</a></li>
</ul>
<script type="application/ld+json">{"@type":"JobPosting","title":"SRE","hiringOrganization":{"name":"Initech"},"url":"https://ld.example.com/sre"}</script>
<script type="application/ld+json">{"@type":"JobPosting","hiringOrganization":{"name":"NoTitle"}}</script>
</body></html>`

type query struct {
	Text     string
	Location string
}

func parseDoc(t *testing.T, raw string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	require.NoError(t, err)
	return doc
}

func TestParseAppliesDefaults(t *testing.T) {
	schemas, err := Parse([]byte(boardYAML))
	require.NoError(t, err)
	require.Len(t, schemas, 2)

	board := schemas[0]
	assert.Equal(t, ModeHTML, board.Mode)
	assert.Equal(t, 10, board.Limit)
	assert.True(t, board.IsEnabled())
	assert.Equal(t, "en-US", board.Headers["Accept-Language"])

	ld := schemas[1]
	assert.Equal(t, ModeJSONLD, ld.Mode)
	assert.False(t, ld.IsEnabled())
}

func TestRenderURL(t *testing.T) {
	schemas, err := Parse([]byte(boardYAML))
	require.NoError(t, err)

	got, err := schemas[0].RenderURL(query{Text: "go developer", Location: "Berlin, DE"})
	require.NoError(t, err)
	assert.Equal(t, "https://board.example.com/search?q=go+developer&l=Berlin%2C+DE", got)

	got, err = schemas[1].RenderURL(query{Text: "Site Reliability"})
	require.NoError(t, err)
	assert.Equal(t, "https://ld.example.com/jobs/site-reliability", got)
}

func TestApplyHTML(t *testing.T) {
	schemas, err := Parse([]byte(boardYAML))
	require.NoError(t, err)

	items := Apply(parseDoc(t, boardHTML), &schemas[0])
	want := []Item{
		{Source: "board", Fields: map[string]string{
			"title":   "Go Engineer",
			"company": "Acme",
			"url":     "https://board.example.com/jobs/1?trk=x",
			"summary": "Build & ship APIs",
			"kind":    "full-time",
		}},
		{Source: "board", Fields: map[string]string{
			"title":   "Platform Engineer",
			"company": "Globex",
			"url":     "https://other.example.com/p/3",
			"kind":    "full-time",
		}},
	}
	if diff := cmp.Diff(want, items); diff != "" {
		t.Errorf("Apply mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyHTMLRespectsLimit(t *testing.T) {
	schemas, err := Parse([]byte(boardYAML))
	require.NoError(t, err)
	s := schemas[0]
	s.Limit = 1

	items := Apply(parseDoc(t, boardHTML), &s)
	require.Len(t, items, 1)
	assert.Equal(t, "Go Engineer", items[0].Get("title"))
}

func TestApplyJSONLD(t *testing.T) {
	schemas, err := Parse([]byte(boardYAML))
	require.NoError(t, err)

	items := Apply(parseDoc(t, boardHTML), &schemas[1])
	require.Len(t, items, 1)
	assert.Equal(t, "ld", items[0].Source)
	assert.Equal(t, "SRE", items[0].Get("title"))
	assert.Equal(t, "initech", items[0].Get("company"))
	assert.Equal(t, "https://ld.example.com/sre", items[0].Get("url"))
}

func TestParseRejectsInvalidSchemas(t *testing.T) {
	cases := map[string]string{
		"missing name":      "sources:\n  - vertical: jobs\n    url: x\n    items: li\n    fields: {title: {}}\n",
		"missing items":     "sources:\n  - name: a\n    vertical: jobs\n    url: x\n    fields: {title: {}}\n",
		"unknown mode":      "sources:\n  - name: a\n    vertical: jobs\n    url: x\n    mode: xml\n",
		"unknown transform": "sources:\n  - name: a\n    vertical: jobs\n    url: x\n    items: li\n    fields: {title: {transforms: [shout]}}\n",
		"bad template":      "sources:\n  - name: a\n    vertical: jobs\n    url: \"{{.Text\"\n    items: li\n    fields: {title: {}}\n",
		"bad yaml":          "sources: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadRejectsDuplicateNames(t *testing.T) {
	one := "sources:\n  - name: dup\n    vertical: jobs\n    url: x\n    items: li\n    fields: {title: {}}\n"
	fsys := fstest.MapFS{
		"schemas/a.yaml": {Data: []byte(one)},
		"schemas/b.yaml": {Data: []byte(one)},
	}
	_, err := Load(fsys, "schemas")
	assert.ErrorContains(t, err, "duplicate source")

	delete(fsys, "schemas/b.yaml")
	schemas, err := Load(fsys, "schemas")
	require.NoError(t, err)
	assert.Len(t, schemas, 1)
}

func TestHTMLText(t *testing.T) {
	assert.Equal(t, "Hello world", HTMLText("<p>Hello</p><p>world</p>"))
	assert.Equal(t, "plain text", HTMLText("  plain   text "))
	assert.Equal(t, "a & b", HTMLText("a &amp; b"))
	assert.Equal(t, "", HTMLText("<script>x()</script>"))
}

func TestJSONLDDescriptionKeepsFirstParagraph(t *testing.T) {
	schemas, err := Parse([]byte(`
sources:
  - name: ld
    vertical: jobs
    mode: jsonld
    jsonld_type: JobPosting
    url: "https://ld.example.com/jobs"
    fields:
      title:
        required: true
      description:
        transforms: [first_line, text]
`))
	require.NoError(t, err)

	doc := parseDoc(t, `<script type="application/ld+json">{"@type":"JobPosting","title":"SRE",
"description":"<p>Run our <b>Go</b> services.</p>\n<p>Benefits: lots.</p>"}</script>`)
	items := Apply(doc, &schemas[0])
	require.Len(t, items, 1)
	assert.Equal(t, "Run our Go services.", items[0].Get("description"))
}
