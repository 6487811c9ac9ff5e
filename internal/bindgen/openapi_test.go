package bindgen

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tenantrpc/internal/contract"
	"github.com/roach88/tenantrpc/internal/registry"
)

func TestOpenAPI_Document(t *testing.T) {
	reg, m := testContract(t)

	file, err := OpenAPI(context.Background(), reg, m)
	require.NoError(t, err)
	assert.Equal(t, OpenAPIFile, file.Path)

	doc, err := openapi3.NewLoader().LoadFromData(file.Content)
	require.NoError(t, err)
	assert.Len(t, doc.Paths.Map(), 3)

	login := doc.Paths.Find("/rpc/login")
	require.NotNil(t, login)
	require.NotNil(t, login.Post)
	assert.Equal(t, "login", login.Post.OperationID)
	assert.Equal(t, "Exchange credentials for a session.", login.Post.Summary)
	assert.Nil(t, doc.Paths.Find("/rpc/missing"))
}

func TestOpenAPI_SchemasAndSecurity(t *testing.T) {
	reg, m := testContract(t)

	file, err := OpenAPI(context.Background(), reg, m)
	require.NoError(t, err)

	var doc struct {
		Paths map[string]struct {
			Post struct {
				Security  []map[string][]string `json:"security"`
				Responses map[string]struct {
					Content map[string]struct {
						Schema struct {
							Properties struct {
								Error struct {
									Properties struct {
										Name struct {
											Enum []string `json:"enum"`
										} `json:"name"`
									} `json:"properties"`
									ErrorData map[string]map[string]string `json:"x-error-data"`
								} `json:"error"`
							} `json:"properties"`
						} `json:"schema"`
					} `json:"content"`
				} `json:"responses"`
			} `json:"post"`
		} `json:"paths"`
		Components struct {
			Schemas map[string]map[string]any `json:"schemas"`
		} `json:"components"`
	}
	require.NoError(t, json.Unmarshal(file.Content, &doc))

	login := doc.Paths["/rpc/login"].Post
	assert.Empty(t, login.Security)
	loginErrors := login.Responses["default"].Content["application/json"].Schema.Properties.Error
	assert.Equal(t, []string{
		"InvalidCredentials", "NotFound", "ValidationError", "Unavailable", "RateLimited", "Internal",
	}, loginErrors.Properties.Name.Enum)

	list := doc.Paths["/rpc/list_invoices"].Post
	assert.Equal(t, []map[string][]string{{"bearer": {}}, {"cookie": {}}}, list.Security)
	listErrors := list.Responses["default"].Content["application/json"].Schema.Properties.Error
	assert.Contains(t, listErrors.Properties.Name.Enum, "Forbidden")
	assert.Equal(t, map[string]map[string]string{"Locked": {"$ref": "#/components/schemas/Locked"}}, listErrors.ErrorData)

	session := doc.Components.Schemas["SessionInfo"]
	assert.Equal(t, []any{"session_id", "tenant_id"}, session["required"])
	assert.Equal(t, false, session["additionalProperties"])
	assert.Equal(t, true, doc.Components.Schemas["Locked"]["additionalProperties"])

	query := doc.Components.Schemas["InvoiceQuery"]
	assert.NotContains(t, query, "required")
	limit := query["properties"].(map[string]any)["limit"].(map[string]any)
	assert.Equal(t, float64(50), limit["default"])
	assert.Equal(t, true, limit["x-coerce"])
}

func TestOpenAPI_Deterministic(t *testing.T) {
	reg, m := testContract(t)

	a, err := OpenAPI(context.Background(), reg, m)
	require.NoError(t, err)
	b, err := OpenAPI(context.Background(), reg, m)
	require.NoError(t, err)
	assert.Equal(t, a.Content, b.Content)
}

func TestOpenAPI_UnresolvedReferences(t *testing.T) {
	m := contract.NewModel()
	m.MustDefine("A", nil)
	reg := registry.New(m)
	reg.MustRegister(registry.Operation{
		Name:    "op",
		Level:   registry.LevelUser,
		Input:   contract.Ref("A"),
		Output:  contract.Ref("Missing"),
		Handler: noop,
	})

	_, err := OpenAPI(context.Background(), reg, m)
	var ue *contract.UnresolvedError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, []string{"op -> Missing"}, ue.Refs)
}
