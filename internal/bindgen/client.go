package bindgen

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/roach88/tenantrpc/internal/contract"
	"github.com/roach88/tenantrpc/internal/registry"
)

const clientHeader = `// Code generated by tenantrpc gen. DO NOT EDIT.

export type Result<T, E> =
  | { ok: true; data: T }
  | { ok: false; error: E };

export interface Envelope {
  ok: boolean;
  data?: unknown;
  error?: { name: string; data: unknown };
}

export type Transport = (operation: string, input: unknown) => Promise<Envelope>;

export type RpcUnknown = { name: "Unknown"; data: unknown };
export type RpcNotFound = { name: "NotFound"; data: null };
export type RpcUnauthenticated = { name: "Unauthenticated"; data: null };
export type RpcForbidden = { name: "Forbidden"; data: null };
export type RpcValidationError = {
  name: "ValidationError";
  data: { violations: Array<{ path: string; message: string }> };
};
export type RpcUnavailable = { name: "Unavailable"; data: null };
export type RpcRateLimited = { name: "RateLimited"; data: null };
export type RpcInternal = { name: "Internal"; data: null };

async function call<T, E>(
  transport: Transport,
  operation: string,
  input: unknown,
  known: readonly string[],
): Promise<Result<T, E>> {
  let env: Envelope;
  try {
    env = await transport(operation, input);
  } catch (err) {
    return { ok: false, error: { name: "Unknown", data: String(err) } as E };
  }
  if (env.ok) {
    return { ok: true, data: env.data as T };
  }
  if (env.error && known.includes(env.error.name)) {
    return { ok: false, error: env.error as E };
  }
  return { ok: false, error: { name: "Unknown", data: env.error ?? null } as E };
}

export function httpTransport(baseURL: string, token?: () => string | undefined): Transport {
  return async (operation, input) => {
    const headers: Record<string, string> = { "Content-Type": "application/json" };
    const bearer = token ? token() : undefined;
    if (bearer) {
      headers["Authorization"] = "Bearer " + bearer;
    }
    const res = await fetch(baseURL + "/rpc/" + operation, {
      method: "POST",
      headers,
      body: JSON.stringify(input ?? {}),
      credentials: "include",
    });
    return (await res.json()) as Envelope;
  };
}
`

// builtinTypes maps the wire variants a caller can receive to their TS
// type, in union order. Unknown is appended last by the renderer.
var builtinTypes = []struct {
	name    string
	tsType  string
	session bool // only reachable when the operation needs a session
}{
	{registry.VariantNotFound, "RpcNotFound", false},
	{registry.VariantUnauthenticated, "RpcUnauthenticated", true},
	{registry.VariantForbidden, "RpcForbidden", true},
	{registry.VariantValidation, "RpcValidationError", false},
	{registry.VariantUnavailable, "RpcUnavailable", false},
	{registry.VariantRateLimited, "RpcRateLimited", false},
	{registry.VariantInternal, "RpcInternal", false},
}

// tsReserved are words that cannot name a TS function.
var tsReserved = map[string]bool{
	"break": true, "case": true, "catch": true, "class": true, "const": true,
	"continue": true, "debugger": true, "default": true, "delete": true,
	"do": true, "else": true, "enum": true, "export": true, "extends": true,
	"false": true, "finally": true, "for": true, "function": true, "if": true,
	"import": true, "in": true, "instanceof": true, "new": true, "null": true,
	"return": true, "super": true, "switch": true, "this": true, "throw": true,
	"true": true, "try": true, "typeof": true, "var": true, "void": true,
	"while": true, "with": true, "let": true, "yield": true, "await": true,
}

func renderClient(ops []*registry.Operation, names []string, descs map[string]contract.Description) []byte {
	var b bytes.Buffer
	b.WriteString(clientHeader)

	for _, name := range names {
		b.WriteByte('\n')
		writeInterface(&b, descs[name])
	}

	for _, op := range ops {
		b.WriteByte('\n')
		writeOperation(&b, op)
	}
	return b.Bytes()
}

func writeInterface(b *bytes.Buffer, d contract.Description) {
	if len(d.Fields) == 0 && !d.AllowUnknown {
		fmt.Fprintf(b, "export type %s = Record<string, never>;\n", d.Name)
		return
	}
	fmt.Fprintf(b, "export interface %s {\n", d.Name)
	for _, f := range d.Fields {
		opt := ""
		if f.Optional {
			opt = "?"
		}
		typ := tsType(f.Type)
		if f.Nullable {
			typ += " | null"
		}
		fmt.Fprintf(b, "  %s%s: %s;\n", f.Name, opt, typ)
	}
	if d.AllowUnknown {
		b.WriteString("  [key: string]: unknown;\n")
	}
	b.WriteString("}\n")
}

func tsType(t contract.Type) string {
	switch t.Kind {
	case contract.KindString:
		return "string"
	case contract.KindInt, contract.KindFloat:
		return "number"
	case contract.KindBool:
		return "boolean"
	case contract.KindList:
		return "Array<" + tsType(*t.Elem) + ">"
	case contract.KindShape, contract.KindRef:
		return t.Shape
	default:
		return "unknown"
	}
}

func writeOperation(b *bytes.Buffer, op *registry.Operation) {
	errType := errorTypeName(op.Name)

	var members, known []string
	for _, v := range op.Errors {
		data := "null"
		if !v.Data.IsZero() {
			data = v.Data.Name()
		}
		members = append(members, fmt.Sprintf("{ name: %s; data: %s }", strconv.Quote(v.Name), data))
		known = append(known, strconv.Quote(v.Name))
	}
	for _, bt := range builtinTypes {
		if bt.session && !op.Level.RequiresSession() {
			continue
		}
		members = append(members, bt.tsType)
		known = append(known, strconv.Quote(bt.name))
	}
	members = append(members, "RpcUnknown")

	fmt.Fprintf(b, "export type %s =\n", errType)
	for i, m := range members {
		end := ""
		if i == len(members)-1 {
			end = ";"
		}
		fmt.Fprintf(b, "  | %s%s\n", m, end)
	}

	b.WriteByte('\n')
	doc := "level: " + op.Level.String()
	if op.Doc != "" {
		doc = strings.Join(strings.Fields(op.Doc), " ") + " (" + doc + ")"
	}
	fmt.Fprintf(b, "/** %s */\n", strings.ReplaceAll(doc, "*/", "* /"))

	result := fmt.Sprintf("Result<%s, %s>", op.Output.Name(), errType)
	fmt.Fprintf(b, "export function %s(transport: Transport, input: %s): Promise<%s> {\n",
		camel(op.Name), op.Input.Name(), result)
	fmt.Fprintf(b, "  return call(transport, %s, input, [%s]);\n",
		strconv.Quote(op.Name), strings.Join(known, ", "))
	b.WriteString("}\n")
}

// pascal converts snake_case to PascalCase: list_invoices -> ListInvoices.
func pascal(snake string) string {
	title := cases.Title(language.Und, cases.NoLower)
	parts := strings.Split(snake, "_")
	for i, p := range parts {
		parts[i] = title.String(p)
	}
	return strings.Join(parts, "")
}

// camel converts snake_case to camelCase, suffixing TS reserved words.
func camel(snake string) string {
	head, rest, _ := strings.Cut(snake, "_")
	name := head
	if rest != "" {
		name += pascal(rest)
	}
	if tsReserved[name] {
		name += "_"
	}
	return name
}
