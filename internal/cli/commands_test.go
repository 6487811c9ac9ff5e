package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tenantrpc/internal/app"
)

const smallContract = `
shape: Ping: { message: "string" }

operation: ping: {
	level:  "public"
	input:  "Ping"
	output: "Ping"
	doc:    "Echo a message."
}
`

const unresolvedContract = `
shape: A: { b: "ref<Missing>" }

operation: op: {
	level:  "user"
	input:  "A"
	output: "Nope"
}
`

const collidingContract = `
shape: Login: { user: "string" }
shape: LoginError: { reason: "string" }

operation: login: {
	level:  "public"
	input:  "Login"
	output: "LoginError"
}
`

const seedYAML = `
tenants:
  - id: acme
    name: Acme Corp
users:
  - email: ada@example.com
    password: correct horse
    tenants:
      - id: acme
        role: owner
invoices:
  - tenant: acme
    number: A-1
    customer: Initrode
    amount_cents: 1200
`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestGen_WriteThenCheck(t *testing.T) {
	out := filepath.Join(t.TempDir(), "api")

	stdout, err := execute(t, "gen", "--out", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ Wrote client.ts, manifest.json to "+out)

	client, err := os.ReadFile(filepath.Join(out, "client.ts"))
	require.NoError(t, err)
	assert.Contains(t, string(client), "export function listInvoices(")

	stdout, err = execute(t, "gen", "--out", out, "--check")
	require.NoError(t, err)
	assert.Contains(t, stdout, "is up to date")
}

func TestGen_CheckDetectsStaleFiles(t *testing.T) {
	out := filepath.Join(t.TempDir(), "api")
	_, err := execute(t, "gen", "--out", out)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(out, "manifest.json"), []byte("{}\n"), 0o644))

	stdout, err := execute(t, "gen", "--out", out, "--check")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "Error [E203]")
	assert.Contains(t, stdout, "manifest.json")
	assert.NotContains(t, stdout, "client.ts")
}

func TestGen_JSONFromContractFile(t *testing.T) {
	path := writeTemp(t, "ping.cue", smallContract)
	out := filepath.Join(t.TempDir(), "api")

	stdout, err := execute(t, "--format", "json", "gen", "--contracts", path, "--out", out)
	require.NoError(t, err)

	var resp struct {
		Status string    `json:"status"`
		Data   GenResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, []string{"client.ts", "manifest.json"}, resp.Data.Files)
	assert.Empty(t, resp.Data.Stale)

	client, err := os.ReadFile(filepath.Join(out, "client.ts"))
	require.NoError(t, err)
	assert.Contains(t, string(client), "export function ping(")
}

func TestGen_OpenAPI(t *testing.T) {
	out := filepath.Join(t.TempDir(), "api")

	stdout, err := execute(t, "gen", "--out", out, "--openapi")
	require.NoError(t, err)
	assert.Contains(t, stdout, "client.ts, manifest.json, openapi.json")

	doc, err := os.ReadFile(filepath.Join(out, "openapi.json"))
	require.NoError(t, err)
	assert.Contains(t, string(doc), `"/rpc/create_invoice"`)

	_, err = execute(t, "gen", "--out", out, "--openapi", "--check")
	require.NoError(t, err)
}

func TestRoutes_Text(t *testing.T) {
	stdout, err := execute(t, "routes")
	require.NoError(t, err)
	assert.Contains(t, stdout, "OPERATION")
	assert.Regexp(t, `list_invoices\s+tenant\s+InvoiceQuery\s+InvoiceList`, stdout)
	assert.Regexp(t, `login\s+public\s+LoginInput\s+SessionInfo\s+InvalidCredentials`, stdout)
}

func TestRoutes_JSON(t *testing.T) {
	stdout, err := execute(t, "--format", "json", "routes")
	require.NoError(t, err)

	var resp struct {
		Data []Route `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))

	_, reg, err := app.Build(app.Deps{})
	require.NoError(t, err)
	require.Len(t, resp.Data, len(reg.Operations()))
	assert.Equal(t, "login", resp.Data[0].Operation)
	assert.Equal(t, "/rpc/login", resp.Data[0].Path)
}

func TestCheck(t *testing.T) {
	t.Run("built-in", func(t *testing.T) {
		stdout, err := execute(t, "check")
		require.NoError(t, err)
		assert.Contains(t, stdout, "operation(s)")
	})

	t.Run("contract file", func(t *testing.T) {
		stdout, err := execute(t, "check", writeTemp(t, "ping.cue", smallContract))
		require.NoError(t, err)
		assert.Contains(t, stdout, "✓ 1 shape(s), 1 operation(s)")
	})

	t.Run("unresolved references", func(t *testing.T) {
		stdout, err := execute(t, "check", writeTemp(t, "bad.cue", unresolvedContract))
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, stdout, "Error [E202]")
		assert.Contains(t, stdout, "A.b -> Missing")
		assert.Contains(t, stdout, "op -> Nope")
	})

	t.Run("identifier collision", func(t *testing.T) {
		stdout, err := execute(t, "check", writeTemp(t, "login.cue", collidingContract))
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, stdout, "Error [E204]")
		assert.Contains(t, stdout, "LoginError (shape LoginError, operation login)")
	})

	t.Run("syntax error", func(t *testing.T) {
		stdout, err := execute(t, "check", writeTemp(t, "broken.cue", `shape: {`))
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, stdout, "Error [E201]")
	})

	t.Run("missing file", func(t *testing.T) {
		stdout, err := execute(t, "check", filepath.Join(t.TempDir(), "absent.cue"))
		require.Error(t, err)
		assert.Contains(t, stdout, "Error [E005]")
	})
}

func TestSeed_RerunSkipsExisting(t *testing.T) {
	seedPath := writeTemp(t, "seed.yaml", seedYAML)
	db := filepath.Join(t.TempDir(), "tenantrpc.db")

	stdout, err := execute(t, "seed", "--db", db, "--bcrypt-cost", "4", seedPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ Seeded 1 tenant(s), 1 user(s), 1 membership(s), 1 invoice(s); skipped 0 existing")

	stdout, err = execute(t, "--format", "json", "seed", "--db", db, "--bcrypt-cost", "4", seedPath)
	require.NoError(t, err)

	var resp struct {
		Data app.SeedReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, 0, resp.Data.Tenants)
	assert.Equal(t, 0, resp.Data.Invoices)
	assert.Equal(t, 3, resp.Data.Skipped)
}

func TestSeed_Errors(t *testing.T) {
	_, err := execute(t, "seed", writeTemp(t, "seed.yaml", seedYAML))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"db" not set`)

	stdout, err := execute(t, "seed", "--db", filepath.Join(t.TempDir(), "x.db"), writeTemp(t, "seed.yaml", "tenants: [{name: nameless}]\n"))
	require.Error(t, err)
	assert.Contains(t, stdout, "Error [E301]")
}

func TestServe_StopsWhenContextEnds(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "tenantrpc.yaml")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "seed.yaml"), []byte(seedYAML), 0o644))
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
listen: 127.0.0.1:0
database: `+filepath.Join(dir, "tenantrpc.db")+`
bcrypt_cost: 4
metrics: true
seed: seed.yaml
`), 0o644))

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	cmd := NewRootCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"serve", "--config", cfgPath})

	require.NoError(t, cmd.ExecuteContext(ctx))
	assert.Contains(t, buf.String(), "Serving")
}

func TestServe_BadConfig(t *testing.T) {
	_, err := execute(t, "serve", "--config", writeTemp(t, "bad.yaml", "listen: [\n"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
