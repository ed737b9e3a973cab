package utils

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"text/template"
	"time"

	jsoniter "github.com/json-iterator/go"

	"web2json/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type ZipEntry struct {
	Name string
	Data []byte
}

// CreateZipArchive writes entries into an in-memory zip archive.
func CreateZipArchive(entries []ZipEntry) ([]byte, error) {
	var buf bytes.Buffer
	zipWriter := zip.NewWriter(&buf)

	for _, e := range entries {
		if err := addFileToZip(zipWriter, e); err != nil {
			zipWriter.Close()
			return nil, err
		}
	}

	if err := zipWriter.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func addFileToZip(zipWriter *zip.Writer, e ZipEntry) error {
	header := &zip.FileHeader{
		Name:     e.Name,
		Method:   zip.Deflate,
		Modified: time.Now(),
	}

	writer, err := zipWriter.CreateHeader(header)
	if err != nil {
		return err
	}

	_, err = writer.Write(e.Data)
	return err
}

// JSONL renders one JSON object per line.
func JSONL(records []map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	for _, r := range records {
		line, err := json.Marshal(r)
		if err != nil {
			return nil, err
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// CSV renders records with one column per field. Arrays are joined with "; ".
func CSV(columns []string, records []map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(columns); err != nil {
		return nil, err
	}

	row := make([]string, len(columns))
	for _, r := range records {
		for i, col := range columns {
			row[i] = cell(r[col])
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	return buf.Bytes(), w.Error()
}

func cell(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case []string:
		return strings.Join(v, "; ")
	case []any:
		parts := make([]string, 0, len(v))
		for _, p := range v {
			parts = append(parts, fmt.Sprint(p))
		}
		return strings.Join(parts, "; ")
	}
	return fmt.Sprint(v)
}

var parserTmpl = template.Must(template.New("parser").Parse(`"""Parser generated by web2json.

Usage:
    python parser.py page.html
"""
import json
import re
import sys

from lxml import html as lxml_html

FIELDS = {
{{- range .Fields}}
    {{printf "%q" .Name}}: ({{printf "%q" .XPath}}, {{printf "%q" .FieldType}}),
{{- end}}
}


def _texts(found):
    if not isinstance(found, list):
        found = [found]
    out = []
    for item in found:
        text = item.text_content() if hasattr(item, "text_content") else str(item)
        text = text.strip()
        if text:
            out.append(text)
    return out


def _convert(values, field_type):
    if field_type == "array":
        return values
    if not values:
        return False if field_type == "bool" else None
    first = values[0]
    if field_type == "int":
        m = re.search(r"-?\d+", first.replace(",", ""))
        return int(m.group()) if m else None
    if field_type == "float":
        m = re.search(r"-?\d+(?:\.\d+)?", first.replace(",", ""))
        return float(m.group()) if m else None
    if field_type == "bool":
        return first.lower() not in ("false", "0", "no", "off")
    return first


def parse(source):
    tree = lxml_html.fromstring(source)
    result = {}
    for name, (xpath, field_type) in FIELDS.items():
        values = _texts(tree.xpath(xpath)) if xpath else []
        result[name] = _convert(values, field_type)
    return result


if __name__ == "__main__":
    with open(sys.argv[1], encoding="utf-8") as f:
        print(json.dumps(parse(f.read()), ensure_ascii=False, indent=2))
`))

var readmeTmpl = template.Must(template.New("readme").Parse(`# web2json results

Task: {{.TaskID}}
Samples parsed: {{.Count}}

## Contents

- parser.py: generated parser, requires lxml
- schema.json: field definitions and their XPath expressions
{{- if .Count}}
- results/: one JSON file per sample
{{- end}}

## Fields
{{range .Fields}}
- {{.Name}} ({{.FieldType}}): {{if .XPath}}{{.XPath}}{{else}}not located{{end}}
{{- end}}
`))

// ParserSource renders parser.py for the given fields.
func ParserSource(fields []models.XPathField) ([]byte, error) {
	var buf bytes.Buffer
	if err := parserTmpl.Execute(&buf, struct{ Fields []models.XPathField }{fields}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func README(taskID string, fields []models.XPathField, count int) ([]byte, error) {
	var buf bytes.Buffer
	err := readmeTmpl.Execute(&buf, struct {
		TaskID string
		Fields []models.XPathField
		Count  int
	}{taskID, fields, count})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Schema maps field names to their definition.
func Schema(fields []models.XPathField) map[string]any {
	schema := make(map[string]any, len(fields))
	for _, f := range fields {
		schema[f.Name] = map[string]any{
			"type":         string(f.FieldType),
			"description":  f.Description,
			"xpath":        f.XPath,
			"value_sample": f.ValueSample,
		}
	}
	return schema
}

// MarshalIndent is the JSON encoding used for files inside the package.
func MarshalIndent(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}
