package main

import (
	"reflect"
	"testing"

	"bob/config"
)

func TestReflectSchemaDescribesDocument(t *testing.T) {
	schema := reflectSchema(reflect.TypeOf(config.Document{}))
	if schema["type"] != "object" {
		t.Fatalf("type = %v, want object", schema["type"])
	}
	props, ok := schema["properties"].(map[string]interface{})
	if !ok {
		t.Fatal("expected properties map")
	}
	servers, ok := props["servers"].(map[string]interface{})
	if !ok {
		t.Fatal("expected a servers property")
	}
	if servers["type"] != "array" {
		t.Fatalf("servers type = %v, want array", servers["type"])
	}
}

func TestReflectSchemaRendersDurationAsString(t *testing.T) {
	schema := reflectSchema(reflect.TypeOf(config.Duration(0)))
	if schema["type"] != "string" {
		t.Fatalf("Duration schema type = %v, want string", schema["type"])
	}
}

func TestYamlFieldNameFallsBackToFieldName(t *testing.T) {
	type example struct {
		Tagged   string `yaml:"tagged_name"`
		Untagged string
	}
	typ := reflect.TypeOf(example{})
	if got := yamlFieldName(typ.Field(0)); got != "tagged_name" {
		t.Fatalf("tagged field name = %q, want tagged_name", got)
	}
	if got := yamlFieldName(typ.Field(1)); got != "Untagged" {
		t.Fatalf("untagged field name = %q, want Untagged", got)
	}
}
