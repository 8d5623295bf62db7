package ir

// JSONSchema renders d into a JSON Schema document object (spec.md §4.5
// "Schema semantics": "The schema exposes a json_schema() suitable for
// embedding in the prompt enrichment"). The returned value marshals
// directly with encoding/json.
func (d SchemaDef) JSONSchema() map[string]any {
	properties := make(map[string]any, len(d.Fields))
	var required []string
	for _, f := range d.Fields {
		properties[f.Name] = f.jsonSchema()
		if !f.IsOptional {
			required = append(required, f.Name)
		}
	}
	doc := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		doc["required"] = required
	}
	return doc
}

func (f SchemaField) jsonSchema() map[string]any {
	base := map[string]any{"type": f.jsonType()}
	if f.IsOptional {
		base["type"] = []string{f.jsonType(), "null"}
	}
	if f.IsList {
		return map[string]any{"type": "array", "items": base}
	}
	return base
}

// jsonType maps a SchemaBaseType to its JSON Schema primitive name.
// Unknown base types default to "string" per spec.
func (f SchemaField) jsonType() string {
	switch f.BaseType {
	case SchemaInt:
		return "integer"
	case SchemaFloat:
		return "number"
	case SchemaBool:
		return "boolean"
	case SchemaString:
		return "string"
	default:
		return "string"
	}
}
