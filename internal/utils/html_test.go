package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"web2json/internal/models"
)

const product = `<html>
<head>
  <title>Blue Kettle</title>
  <meta name="description" content="A kettle that is blue">
  <meta property="og:brand" content="Acme">
</head>
<body>
  <h1>Blue Kettle</h1>
  <span id="price">1,299.50 USD</span>
  <span itemprop="stock-count">42 left</span>
  <div class="product in-stock">yes</div>
  <p>First.</p><p>Second.</p>
</body>
</html>`

func parseDocs(t *testing.T, srcs ...string) []*html.Node {
	t.Helper()
	docs := make([]*html.Node, 0, len(srcs))
	for _, src := range srcs {
		doc, err := ParseHTML(src)
		require.NoError(t, err)
		docs = append(docs, doc)
	}
	return docs
}

func TestInferFields(t *testing.T) {
	fields := InferFields(parseDocs(t, product))

	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"title", "heading", "description", "paragraphs"}, names)
	assert.Equal(t, models.FieldArray, fields[3].FieldType)
}

func TestInferFieldsEmptyDocument(t *testing.T) {
	fields := InferFields(parseDocs(t, "<html><body></body></html>"))
	assert.NotNil(t, fields)
	assert.Empty(t, fields)
}

func TestLocateField(t *testing.T) {
	docs := parseDocs(t, product)

	tests := []struct {
		name string
		want string
	}{
		{"title", "//title"},
		{"price", "//*[@id='price']"},
		{"stock_count", "//*[@itemprop='stock-count']"},
		{"in-stock", "//*[contains(concat(' ', normalize-space(@class), ' '), ' in-stock ')]"},
		{"brand", "//meta[@property='og:brand']/@content"},
		{"missing", ""},
		{"bad'name", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LocateField(docs, models.Field{Name: tt.name}))
		})
	}
}

func TestValues(t *testing.T) {
	doc := parseDocs(t, product)[0]

	assert.Equal(t, []string{"First.", "Second."}, Values(doc, "//p"))
	assert.Equal(t, []string{}, Values(doc, ""))
	assert.Equal(t, []string{}, Values(doc, "//p["))
}

func TestConvert(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		typ    models.FieldType
		want   any
	}{
		{"string", []string{"a", "b"}, models.FieldString, "a"},
		{"int", []string{"42 left"}, models.FieldInt, 42},
		{"int with separator", []string{"1,024"}, models.FieldInt, 1024},
		{"int without digits", []string{"none"}, models.FieldInt, nil},
		{"float", []string{"1,299.50 USD"}, models.FieldFloat, 1299.5},
		{"bool true", []string{"yes"}, models.FieldBool, true},
		{"bool false", []string{"Off"}, models.FieldBool, false},
		{"bool missing", nil, models.FieldBool, false},
		{"array", []string{"x", "y"}, models.FieldArray, []string{"x", "y"}},
		{"missing", nil, models.FieldString, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Convert(tt.values, tt.typ))
		})
	}
}
