package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"web2json/internal/models"
	"web2json/internal/xpath"
)

type candidate struct {
	name  string
	desc  string
	typ   models.FieldType
	xpath string
}

// candidates are tried in order when no fields are given.
var candidates = []candidate{
	{name: "title", desc: "Page title", typ: models.FieldString, xpath: "//title"},
	{name: "heading", desc: "Main heading", typ: models.FieldString, xpath: "//h1"},
	{name: "description", desc: "Page description", typ: models.FieldString, xpath: "//meta[@name='description']/@content"},
	{name: "author", desc: "Author", typ: models.FieldString, xpath: "//meta[@name='author']/@content"},
	{name: "published", desc: "Publication time", typ: models.FieldString, xpath: "//time/@datetime"},
	{name: "paragraphs", desc: "Paragraph texts", typ: models.FieldArray, xpath: "//p"},
	{name: "links", desc: "Link targets", typ: models.FieldArray, xpath: "//a/@href"},
	{name: "images", desc: "Image sources", typ: models.FieldArray, xpath: "//img/@src"},
}

var (
	safeName = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	intRe    = regexp.MustCompile(`-?\d+`)
	floatRe  = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
)

func ParseHTML(src string) (*html.Node, error) {
	return htmlquery.Parse(strings.NewReader(src))
}

// Values evaluates expr on doc. An invalid or empty expression yields nothing.
func Values(doc *html.Node, expr string) []string {
	if expr == "" {
		return []string{}
	}
	values, err := xpath.EvaluateNode(doc, expr)
	if err != nil {
		return []string{}
	}
	return values
}

func matchesAny(docs []*html.Node, expr string) bool {
	for _, doc := range docs {
		if len(Values(doc, expr)) > 0 {
			return true
		}
	}
	return false
}

// InferFields proposes the candidate fields that have a value in at least one
// document.
func InferFields(docs []*html.Node) []models.XPathField {
	fields := []models.XPathField{}
	for _, c := range candidates {
		if !matchesAny(docs, c.xpath) {
			continue
		}
		fields = append(fields, models.XPathField{
			Name:        c.name,
			Description: c.desc,
			FieldType:   c.typ,
			XPath:       c.xpath,
		})
	}
	return fields
}

// LocateField picks an XPath for a named field: a known candidate with the
// same name first, then elements whose id, itemprop, class or meta name
// mention it. Returns "" when nothing can be located.
func LocateField(docs []*html.Node, f models.Field) string {
	name := strings.ToLower(strings.TrimSpace(f.Name))

	for _, c := range candidates {
		if c.name == name && matchesAny(docs, c.xpath) {
			return c.xpath
		}
	}

	if !safeName.MatchString(name) {
		return ""
	}

	for _, v := range variants(name) {
		for _, expr := range []string{
			fmt.Sprintf("//*[@id='%s']", v),
			fmt.Sprintf("//*[@itemprop='%s']", v),
			fmt.Sprintf("//*[contains(concat(' ', normalize-space(@class), ' '), ' %s ')]", v),
			fmt.Sprintf("//meta[@property='og:%s']/@content", v),
			fmt.Sprintf("//meta[@name='%s']/@content", v),
		} {
			if matchesAny(docs, expr) {
				return expr
			}
		}
	}

	return ""
}

func variants(name string) []string {
	out := []string{name}
	for _, v := range []string{
		strings.ReplaceAll(name, "_", "-"),
		strings.ReplaceAll(name, "-", "_"),
	} {
		if v != name {
			out = append(out, v)
		}
	}
	return out
}

// Convert turns extracted text into a value of the field type. Values that
// cannot be converted become nil.
func Convert(values []string, t models.FieldType) any {
	if t == models.FieldArray {
		return values
	}
	if len(values) == 0 {
		if t == models.FieldBool {
			return false
		}
		return nil
	}

	first := values[0]
	switch t {
	case models.FieldInt:
		m := intRe.FindString(strings.ReplaceAll(first, ",", ""))
		n, err := strconv.Atoi(m)
		if err != nil {
			return nil
		}
		return n
	case models.FieldFloat:
		m := floatRe.FindString(strings.ReplaceAll(first, ",", ""))
		n, err := strconv.ParseFloat(m, 64)
		if err != nil {
			return nil
		}
		return n
	case models.FieldBool:
		switch strings.ToLower(first) {
		case "false", "0", "no", "off":
			return false
		}
		return true
	}
	return first
}
