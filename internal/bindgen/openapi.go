package bindgen

import (
	"context"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/roach88/tenantrpc/internal/contract"
	"github.com/roach88/tenantrpc/internal/registry"
)

// OpenAPIFile is the optional OpenAPI artifact.
const OpenAPIFile = "openapi.json"

const schemaPrefix = "#/components/schemas/"

// OpenAPI renders an OpenAPI 3.0 document for the HTTP transport: one
// POST /rpc/{operation} path per operation, request and response bodies
// referencing the shared shape schemas. The document is canonical JSON and
// is checked with the kin-openapi validator before it is returned.
func OpenAPI(ctx context.Context, reg *registry.Registry, model *contract.Model) (File, error) {
	if err := checkReferences(reg, model); err != nil {
		return File{}, err
	}

	schemas := contract.Object{}
	for _, name := range model.Names() {
		d, err := model.Describe(contract.Ref(name))
		if err != nil {
			return File{}, fmt.Errorf("describe %s: %w", name, err)
		}
		schemas[name] = shapeSchema(d)
	}

	paths := contract.Object{}
	for _, op := range reg.Operations() {
		paths["/rpc/"+op.Name] = contract.Object{"post": operationObject(op)}
	}

	doc := contract.Object{
		"openapi": contract.String("3.0.3"),
		"info": contract.Object{
			"title":   contract.String("tenantrpc"),
			"version": contract.String(ManifestVersion),
		},
		"paths": paths,
		"components": contract.Object{
			"schemas": schemas,
			"securitySchemes": contract.Object{
				"bearer": contract.Object{
					"type":   contract.String("http"),
					"scheme": contract.String("bearer"),
				},
				"cookie": contract.Object{
					"type": contract.String("apiKey"),
					"in":   contract.String("cookie"),
					"name": contract.String("session"),
				},
			},
		},
	}

	out, err := contract.MarshalCanonical(doc)
	if err != nil {
		return File{}, fmt.Errorf("marshal openapi: %w", err)
	}

	loaded, err := openapi3.NewLoader().LoadFromData(out)
	if err != nil {
		return File{}, fmt.Errorf("load openapi: %w", err)
	}
	if err := loaded.Validate(ctx); err != nil {
		return File{}, fmt.Errorf("invalid openapi: %w", err)
	}

	return File{Path: OpenAPIFile, Content: append(out, '\n')}, nil
}

func operationObject(op *registry.Operation) contract.Object {
	obj := contract.Object{
		"operationId": contract.String(op.Name),
		"tags":        contract.List{contract.String(op.Level.String())},
		"requestBody": contract.Object{
			"required": contract.Bool(true),
			"content":  jsonContent(refSchema(op.Input.Name())),
		},
		"responses": contract.Object{
			"200": contract.Object{
				"description": contract.String("Success envelope."),
				"content": jsonContent(contract.Object{
					"type":     contract.String("object"),
					"required": contract.List{contract.String("ok"), contract.String("data")},
					"properties": contract.Object{
						"ok":   contract.Object{"type": contract.String("boolean"), "enum": contract.List{contract.Bool(true)}},
						"data": refSchema(op.Output.Name()),
					},
				}),
			},
			"default": contract.Object{
				"description": contract.String("Error envelope."),
				"content":     jsonContent(errorEnvelope(op)),
			},
		},
	}
	if op.Doc != "" {
		obj["summary"] = contract.String(op.Doc)
	}
	if op.Level.RequiresSession() {
		obj["security"] = contract.List{
			contract.Object{"bearer": contract.List{}},
			contract.Object{"cookie": contract.List{}},
		}
	} else {
		obj["security"] = contract.List{}
	}
	return obj
}

// errorEnvelope enumerates every variant name op can fail with. Data schemas
// are listed per declared variant under x-error-data.
func errorEnvelope(op *registry.Operation) contract.Object {
	var names contract.List
	data := contract.Object{}
	for _, v := range op.Errors {
		names = append(names, contract.String(v.Name))
		if !v.Data.IsZero() {
			data[v.Name] = refSchema(v.Data.Name())
		}
	}
	for _, bt := range builtinTypes {
		if bt.session && !op.Level.RequiresSession() {
			continue
		}
		names = append(names, contract.String(bt.name))
	}

	errObj := contract.Object{
		"type":     contract.String("object"),
		"required": contract.List{contract.String("name"), contract.String("data")},
		"properties": contract.Object{
			"name": contract.Object{"type": contract.String("string"), "enum": names},
			"data": contract.Object{},
		},
	}
	if len(data) > 0 {
		errObj["x-error-data"] = data
	}
	return contract.Object{
		"type":     contract.String("object"),
		"required": contract.List{contract.String("ok"), contract.String("error")},
		"properties": contract.Object{
			"ok":    contract.Object{"type": contract.String("boolean"), "enum": contract.List{contract.Bool(false)}},
			"error": errObj,
		},
	}
}

func shapeSchema(d contract.Description) contract.Object {
	props := contract.Object{}
	var required contract.List
	for _, f := range d.Fields {
		s := typeSchema(f.Type)
		if _, isRef := s["$ref"]; isRef && (f.Nullable || f.Default != nil) {
			// A $ref admits no siblings in 3.0.
			s = contract.Object{"allOf": contract.List{s}}
		}
		if f.Nullable {
			s["nullable"] = contract.Bool(true)
		}
		if f.Default != nil {
			s["default"] = f.Default
		}
		if f.Coerce {
			s["x-coerce"] = contract.Bool(true)
		}
		props[f.Name] = s
		if !f.Optional {
			required = append(required, contract.String(f.Name))
		}
	}

	schema := contract.Object{
		"type":                 contract.String("object"),
		"properties":           props,
		"additionalProperties": contract.Bool(d.AllowUnknown),
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func typeSchema(t contract.Type) contract.Object {
	switch t.Kind {
	case contract.KindString:
		return contract.Object{"type": contract.String("string")}
	case contract.KindInt:
		return contract.Object{"type": contract.String("integer"), "format": contract.String("int64")}
	case contract.KindFloat:
		return contract.Object{"type": contract.String("number"), "format": contract.String("double")}
	case contract.KindBool:
		return contract.Object{"type": contract.String("boolean")}
	case contract.KindList:
		return contract.Object{"type": contract.String("array"), "items": typeSchema(*t.Elem)}
	default:
		return refSchema(t.Shape)
	}
}

func refSchema(name string) contract.Object {
	return contract.Object{"$ref": contract.String(schemaPrefix + name)}
}

func jsonContent(schema contract.Object) contract.Object {
	return contract.Object{"application/json": contract.Object{"schema": schema}}
}
