// Command schema-generator writes the orion.yml JSON schema, including the
// logging and tui extension sections, for editors and CI.
package main

import (
	"bytes"
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/grovetools/orion/cmd"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

func main() {
	out := flag.String("out", filepath.Join("schema", "orion.schema.json"), "schema file to write")
	check := flag.Bool("check", false, "fail if the schema file is out of date instead of writing it")
	flag.Parse()

	schemaBytes, err := cmd.ConfigSchema()
	if err != nil {
		log.Fatalf("Error generating schema: %v", err)
	}
	schemaBytes = append(schemaBytes, '\n')

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("orion.schema.json", bytes.NewReader(schemaBytes)); err != nil {
		log.Fatalf("Generated schema is not valid JSON: %v", err)
	}
	if _, err := compiler.Compile("orion.schema.json"); err != nil {
		log.Fatalf("Generated schema does not compile: %v", err)
	}

	if *check {
		current, err := os.ReadFile(*out)
		if err != nil {
			log.Fatalf("Error reading %s: %v", *out, err)
		}
		if !bytes.Equal(current, schemaBytes) {
			log.Fatalf("%s is out of date; run schema-generator", *out)
		}
		log.Printf("%s is up to date", *out)
		return
	}

	if err := os.MkdirAll(filepath.Dir(*out), 0755); err != nil {
		log.Fatalf("Error creating schema directory: %v", err)
	}
	if err := os.WriteFile(*out, schemaBytes, 0644); err != nil {
		log.Fatalf("Error writing schema file: %v", err)
	}
	log.Printf("Successfully generated schema at %s", *out)
}
