package main

import (
	"fmt"
	"strings"

	"web2json/internal/models"
)

// fieldSlice collects repeated --field name[:type[:description]] flags.
type fieldSlice []models.Field

func (f *fieldSlice) String() string {
	parts := make([]string, 0, len(*f))
	for _, field := range *f {
		parts = append(parts, fmt.Sprintf("%s:%s", field.Name, field.FieldType))
	}
	return strings.Join(parts, ",")
}

func (f *fieldSlice) Set(value string) error {
	pieces := strings.SplitN(value, ":", 3)

	name := strings.TrimSpace(pieces[0])
	if name == "" {
		return fmt.Errorf("invalid field %q, expected format name[:type[:description]]", value)
	}

	field := models.Field{Name: name, FieldType: models.FieldString}
	if len(pieces) > 1 && strings.TrimSpace(pieces[1]) != "" {
		field.FieldType = models.FieldType(strings.TrimSpace(pieces[1]))
		if !field.FieldType.Valid() {
			return fmt.Errorf("invalid type in field %q, expected one of string, int, float, bool, array", value)
		}
	}
	if len(pieces) > 2 {
		field.Description = strings.TrimSpace(pieces[2])
	}

	*f = append(*f, field)
	return nil
}

func (f *fieldSlice) Type() string {
	return "field"
}
