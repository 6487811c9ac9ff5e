package bindgen

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tenantrpc/internal/contract"
	"github.com/roach88/tenantrpc/internal/registry"
)

func noop(context.Context, *registry.Call, contract.Object) (contract.Value, error) {
	return contract.Object{}, nil
}

func testContract(t *testing.T) (*registry.Registry, *contract.Model) {
	t.Helper()

	m := contract.NewModel()
	m.MustDefine("LoginInput", []contract.Field{
		{Name: "email", Type: contract.StringType()},
		{Name: "password", Type: contract.StringType()},
		{Name: "tenant_id", Type: contract.StringType(), Optional: true},
	})
	m.MustDefine("SessionInfo", []contract.Field{
		{Name: "session_id", Type: contract.StringType()},
		{Name: "tenant_id", Type: contract.StringType(), Nullable: true},
	})
	m.MustDefine("Empty", nil)
	m.MustDefine("Invoice", []contract.Field{
		{Name: "id", Type: contract.StringType()},
		{Name: "amount_cents", Type: contract.IntType()},
		{Name: "tags", Type: contract.ListType(contract.StringType())},
		{Name: "parent", Type: contract.RefType("Invoice"), Optional: true},
	})
	m.MustDefine("InvoiceQuery", []contract.Field{
		{Name: "limit", Type: contract.IntType(), Default: contract.Int(50), Coerce: true},
	})
	m.MustDefine("InvoiceList", []contract.Field{
		{Name: "invoices", Type: contract.ListType(contract.ShapeType("Invoice"))},
	})
	m.MustDefine("Locked", []contract.Field{
		{Name: "reason", Type: contract.StringType()},
	}, contract.AllowUnknown())
	require.NoError(t, m.Seal())

	reg := registry.New(m)
	reg.MustRegister(registry.Operation{
		Name:    "login",
		Level:   registry.LevelPublic,
		Input:   contract.Ref("LoginInput"),
		Output:  contract.Ref("SessionInfo"),
		Errors:  []registry.ErrorVariant{{Name: "InvalidCredentials"}},
		Doc:     "Exchange credentials for a session.",
		Handler: noop,
	})
	reg.MustRegister(registry.Operation{
		Name:    "logout",
		Level:   registry.LevelUser,
		Input:   contract.Ref("Empty"),
		Output:  contract.Ref("Empty"),
		Handler: noop,
	})
	reg.MustRegister(registry.Operation{
		Name:    "list_invoices",
		Level:   registry.LevelTenant,
		Input:   contract.Ref("InvoiceQuery"),
		Output:  contract.Ref("InvoiceList"),
		Errors:  []registry.ErrorVariant{{Name: "Locked", Data: contract.Ref("Locked")}},
		Doc:     "List invoices for the\n  active tenant.",
		Handler: noop,
	})
	return reg, m
}

func TestGenerate_Golden(t *testing.T) {
	reg, m := testContract(t)

	arts, err := Generate(reg, m)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	for _, name := range []string{ClientFile, ManifestFile} {
		content, ok := arts.File(name)
		require.True(t, ok, name)
		g.Assert(t, name, content)
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	reg, m := testContract(t)

	first, err := Generate(reg, m)
	require.NoError(t, err)
	for range 5 {
		again, err := Generate(reg, m)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestGenerate_DigestTracksReachableShapes(t *testing.T) {
	digests := func(invoiceFields []contract.Field) map[string]string {
		m := contract.NewModel()
		m.MustDefine("Empty", nil)
		m.MustDefine("Invoice", invoiceFields)
		m.MustDefine("InvoiceList", []contract.Field{
			{Name: "invoices", Type: contract.ListType(contract.ShapeType("Invoice"))},
		})
		reg := registry.New(m)
		reg.MustRegister(registry.Operation{Name: "ping", Level: registry.LevelPublic,
			Input: contract.Ref("Empty"), Output: contract.Ref("Empty"), Handler: noop})
		reg.MustRegister(registry.Operation{Name: "list_invoices", Level: registry.LevelTenant,
			Input: contract.Ref("Empty"), Output: contract.Ref("InvoiceList"), Handler: noop})

		arts, err := Generate(reg, m)
		require.NoError(t, err)
		raw, _ := arts.File(ManifestFile)
		v, err := contract.DecodeJSON(raw)
		require.NoError(t, err)

		out := map[string]string{}
		for _, op := range v.(contract.Object)["operations"].(contract.List) {
			obj := op.(contract.Object)
			out[obj.Str("name")] = obj.Str("sha256")
		}
		return out
	}

	before := digests([]contract.Field{{Name: "id", Type: contract.StringType()}})
	after := digests([]contract.Field{{Name: "id", Type: contract.StringType(), Nullable: true}})

	assert.Equal(t, before["ping"], after["ping"], "unrelated operation keeps its digest")
	assert.NotEqual(t, before["list_invoices"], after["list_invoices"], "nested shape change alters digest")
}

func TestGenerate_UnresolvedReferences(t *testing.T) {
	m := contract.NewModel()
	m.MustDefine("Node", []contract.Field{{Name: "owner", Type: contract.RefType("Owner")}})

	reg := registry.New(m)
	reg.MustRegister(registry.Operation{
		Name:    "get_node",
		Level:   registry.LevelUser,
		Input:   contract.Ref("Node"),
		Output:  contract.Ref("NodeView"),
		Errors:  []registry.ErrorVariant{{Name: "Gone", Data: contract.Ref("GoneInfo")}},
		Handler: noop,
	})

	_, err := Generate(reg, m)
	require.Error(t, err)

	var ue *contract.UnresolvedError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, []string{
		"Node.owner -> Owner",
		"get_node -> GoneInfo",
		"get_node -> NodeView",
	}, ue.Refs)

	assert.ErrorAs(t, Check(reg, m), &ue)
}

func TestArtifacts_WriteDirAndDiff(t *testing.T) {
	reg, m := testContract(t)
	arts, err := Generate(reg, m)
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "gen")

	stale, err := arts.Diff(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{ClientFile, ManifestFile}, stale)

	require.NoError(t, arts.WriteDir(dir))
	stale, err = arts.Diff(dir)
	require.NoError(t, err)
	assert.Empty(t, stale)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFile), []byte("{}\n"), 0o644))
	stale, err = arts.Diff(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{ManifestFile}, stale)
}

func TestNames(t *testing.T) {
	tests := []struct {
		in, pascal, camel string
	}{
		{"login", "Login", "login"},
		{"list_invoices", "ListInvoices", "listInvoices"},
		{"switch_tenant", "SwitchTenant", "switchTenant"},
		{"delete", "Delete", "delete_"},
		{"get_v2_report", "GetV2Report", "getV2Report"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.pascal, pascal(tt.in))
			assert.Equal(t, tt.camel, camel(tt.in))
		})
	}
}
