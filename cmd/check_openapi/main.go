package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const schemaRefPrefix = "#/components/schemas/"

type openAPIDoc struct {
	Paths      map[string]map[string]operation `yaml:"paths"`
	Components struct {
		Schemas   map[string]schema   `yaml:"schemas"`
		Responses map[string]response `yaml:"responses"`
	} `yaml:"components"`
}

type operation struct {
	RequestBody *struct {
		Content map[string]mediaType `yaml:"content"`
	} `yaml:"requestBody"`
	Responses map[string]response `yaml:"responses"`
}

type response struct {
	Ref     string               `yaml:"$ref"`
	Content map[string]mediaType `yaml:"content"`
}

type mediaType struct {
	Schema schema `yaml:"schema"`
}

type schema struct {
	Type       string            `yaml:"type"`
	Ref        string            `yaml:"$ref"`
	Properties map[string]schema `yaml:"properties"`
	Required   []string          `yaml:"required"`
}

type routeContract struct {
	Path     string
	Request  string
	Response string
}

// schemaContract lists required and optional string properties.
type schemaContract struct {
	Required []string
	Optional []string
}

var routes = []routeContract{
	{Path: "/explain", Request: "ExplainRequest", Response: "ExplainResponse"},
	{Path: "/debug", Request: "DebugRequest", Response: "DebugResponse"},
	{Path: "/simplify", Request: "SimplifyRequest", Response: "SimplifyResponse"},
}

var schemas = map[string]schemaContract{
	"ExplainRequest":   {Required: []string{"code"}},
	"DebugRequest":     {Required: []string{"code"}},
	"SimplifyRequest":  {Required: []string{"code", "language"}},
	"ExplainResponse":  {Required: []string{"explanation", "codeSnippet"}},
	"DebugResponse":    {Required: []string{"debugging_suggestions", "original_code"}},
	"SimplifyResponse": {Required: []string{"simplification"}},
	"ErrorResponse":    {Required: []string{"error"}, Optional: []string{"details"}},
}

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <openapi.yaml>\n", os.Args[0])
		os.Exit(2)
	}
	doc, err := loadDoc(os.Args[1])
	if err != nil {
		exitErr(err)
	}
	if err := check(doc); err != nil {
		exitErr(err)
	}
	fmt.Println("OpenAPI contract check passed.")
}

func loadDoc(path string) (openAPIDoc, error) {
	var doc openAPIDoc
	raw, err := os.ReadFile(path)
	if err != nil {
		return doc, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return doc, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

func check(doc openAPIDoc) error {
	names := make([]string, 0, len(schemas))
	for name := range schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s, err := getSchema(doc, name)
		if err != nil {
			return err
		}
		if err := validateSchema(name, s, schemas[name]); err != nil {
			return err
		}
	}
	for _, route := range routes {
		if err := validateRoute(doc, route); err != nil {
			return err
		}
	}
	return nil
}

func getSchema(doc openAPIDoc, name string) (schema, error) {
	if doc.Components.Schemas == nil {
		return schema{}, errors.New("components.schemas missing")
	}
	s, ok := doc.Components.Schemas[name]
	if !ok {
		return schema{}, fmt.Errorf("schema %q missing", name)
	}
	return s, nil
}

func validateSchema(name string, s schema, want schemaContract) error {
	if s.Type != "object" {
		return fmt.Errorf("%s must be object", name)
	}
	if got, exp := sortedJoin(s.Required), sortedJoin(want.Required); got != exp {
		return fmt.Errorf("%s required mismatch: [%s] vs [%s]", name, got, exp)
	}
	fields := append(append([]string(nil), want.Required...), want.Optional...)
	if len(s.Properties) != len(fields) {
		return fmt.Errorf("%s property count mismatch: %d vs %d", name, len(s.Properties), len(fields))
	}
	for _, field := range fields {
		prop, ok := s.Properties[field]
		if !ok || prop.Type != "string" {
			return fmt.Errorf("%s.%s must be string", name, field)
		}
	}
	return nil
}

func validateRoute(doc openAPIDoc, route routeContract) error {
	op, ok := doc.Paths[route.Path]["post"]
	if !ok {
		return fmt.Errorf("POST %s missing", route.Path)
	}
	if op.RequestBody == nil {
		return fmt.Errorf("POST %s requestBody missing", route.Path)
	}
	if ref := op.RequestBody.Content["application/json"].Schema.Ref; ref != schemaRefPrefix+route.Request {
		return fmt.Errorf("POST %s requestBody must reference %s, got %q", route.Path, route.Request, ref)
	}
	expect := map[string]string{
		"200": route.Response,
		"400": "ErrorResponse",
		"500": "ErrorResponse",
	}
	for status, schemaName := range expect {
		resp, ok := op.Responses[status]
		if !ok {
			return fmt.Errorf("POST %s response %s missing", route.Path, status)
		}
		resp, err := resolveResponse(doc, resp)
		if err != nil {
			return fmt.Errorf("POST %s response %s: %w", route.Path, status, err)
		}
		if ref := resp.Content["application/json"].Schema.Ref; ref != schemaRefPrefix+schemaName {
			return fmt.Errorf("POST %s response %s must reference %s, got %q", route.Path, status, schemaName, ref)
		}
	}
	return nil
}

func resolveResponse(doc openAPIDoc, resp response) (response, error) {
	ref := strings.TrimSpace(resp.Ref)
	if ref == "" {
		return resp, nil
	}
	name, ok := strings.CutPrefix(ref, "#/components/responses/")
	if !ok {
		return response{}, fmt.Errorf("unsupported response ref %q", ref)
	}
	target, ok := doc.Components.Responses[name]
	if !ok {
		return response{}, fmt.Errorf("response %q missing", name)
	}
	return target, nil
}

func sortedJoin(values []string) string {
	out := append([]string(nil), values...)
	sort.Strings(out)
	return strings.Join(out, ",")
}

func exitErr(err error) {
	fmt.Fprintf(os.Stderr, "OpenAPI contract check failed: %v\n", err)
	os.Exit(1)
}
