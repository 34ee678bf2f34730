package identity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	u, err := Decode(`{"id":"1","email":"a@b.com","full_name":"Ada","metadata":{"role":"admin"}}`)
	require.NoError(t, err)

	assert.Equal(t, "1", u.ID)
	assert.Equal(t, "a@b.com", u.Email)
	assert.Equal(t, "Ada", u.FullName)
	assert.Equal(t, RoleAdmin, u.Role())
	assert.Empty(t, u.Extra)
}

func TestDecode_NumericID(t *testing.T) {
	u, err := Decode(`{"id":17,"email":"a@b.com"}`)
	require.NoError(t, err)
	assert.Equal(t, "17", u.ID)
}

func TestDecode_Malformed(t *testing.T) {
	inputs := []string{
		`{"id":"1"`,
		`not json`,
		`null`,
		`[]`,
		`{"metadata":"admin"}`,
		`{"id":true}`,
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			_, err := Decode(in)
			assert.Error(t, err)
		})
	}
}

func TestEncode_RoundTripKeepsUnknownFields(t *testing.T) {
	original := `{"id":"u-1","email":"org@example.com","metadata":{"role":"organization","org_name":"Shelter"},"created_at":"2025-01-02T03:04:05Z","avatar":null}`

	u, err := Decode(original)
	require.NoError(t, err)
	require.Contains(t, u.Extra, "created_at")

	encoded, err := Encode(u)
	require.NoError(t, err)
	assert.JSONEq(t, original, encoded)

	again, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, u, again)
}

func TestMarshal_ExtraCannotShadowKnownFields(t *testing.T) {
	u := User{
		ID:    "1",
		Extra: map[string]json.RawMessage{"id": json.RawMessage(`"spoofed"`), "bio": json.RawMessage(`"hi"`)},
	}

	data, err := json.Marshal(u)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"1","bio":"hi"}`, string(data))
}
