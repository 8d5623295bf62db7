package exec

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/streetrace-ai/streetrace-go/runtime/dsl/ir"
)

// schemaCache compiles and caches jsonschema.Schema instances from
// ir.SchemaDef.JSONSchema() documents, one compiler resource per schema
// name, mirroring runtime/tools.Provider.compileSchema's
// AddResource+Compile pattern.
type schemaCache struct {
	compiler *jsonschema.Compiler
	compiled map[string]*jsonschema.Schema
}

func newSchemaCache() *schemaCache {
	return &schemaCache{
		compiler: jsonschema.NewCompiler(),
		compiled: make(map[string]*jsonschema.Schema),
	}
}

func (c *schemaCache) get(def ir.SchemaDef) (*jsonschema.Schema, error) {
	if s, ok := c.compiled[def.Name]; ok {
		return s, nil
	}
	resourceName := "mem://dsl/schemas/" + def.Name
	if err := c.compiler.AddResource(resourceName, def.JSONSchema()); err != nil {
		return nil, fmt.Errorf("dsl: add schema resource %q: %w", def.Name, err)
	}
	schema, err := c.compiler.Compile(resourceName)
	if err != nil {
		return nil, fmt.Errorf("dsl: compile schema %q: %w", def.Name, err)
	}
	c.compiled[def.Name] = schema
	return schema, nil
}

// schemaJSONText marshals a SchemaDef's JSON Schema document to indented
// text, for embedding in an enriched prompt.
func schemaJSONText(def ir.SchemaDef) (string, error) {
	b, err := json.MarshalIndent(def.JSONSchema(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("dsl: marshal schema %q: %w", def.Name, err)
	}
	return string(b), nil
}
