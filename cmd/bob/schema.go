// Copyright 2015 Light Code Labs, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"encoding/json"
	"os"
	"reflect"
	"strings"

	"github.com/spf13/cobra"

	"bob/config"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print a JSON Schema of the YAML configuration document",
	Long: `schema reflects over the configuration structs and prints a minimal
JSON Schema describing the accepted document shape. It exists so editors
and validators have something to check a bob.yaml against without this
project depending on a schema-generation library.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		doc := reflectSchema(reflect.TypeOf(config.Document{}))
		doc["$schema"] = "http://json-schema.org/draft-07/schema#"
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}

// reflectSchema builds a minimal JSON Schema fragment for t. It
// handles the shapes actually used by the config package: structs,
// slices, maps with string keys, pointers, and the scalar types
// (string, bool, the integer kinds, and the custom Duration type,
// which is schema'd as a string since it marshals as one).
func reflectSchema(t reflect.Type) map[string]interface{} {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if t.Name() == "Duration" && t.PkgPath() == reflect.TypeOf(config.Duration(0)).PkgPath() {
		return map[string]interface{}{"type": "string", "description": "a Go duration string, e.g. \"5s\""}
	}

	switch t.Kind() {
	case reflect.String:
		return map[string]interface{}{"type": "string"}
	case reflect.Bool:
		return map[string]interface{}{"type": "boolean"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return map[string]interface{}{"type": "integer"}
	case reflect.Slice, reflect.Array:
		return map[string]interface{}{"type": "array", "items": reflectSchema(t.Elem())}
	case reflect.Map:
		return map[string]interface{}{"type": "object", "additionalProperties": reflectSchema(t.Elem())}
	case reflect.Struct:
		props := map[string]interface{}{}
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			name := yamlFieldName(f)
			if name == "-" {
				continue
			}
			props[name] = reflectSchema(f.Type)
		}
		return map[string]interface{}{"type": "object", "properties": props}
	default:
		return map[string]interface{}{}
	}
}

func yamlFieldName(f reflect.StructField) string {
	tag := f.Tag.Get("yaml")
	if tag == "" {
		return f.Name
	}
	name := strings.Split(tag, ",")[0]
	if name == "" {
		return f.Name
	}
	return name
}
