package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "digitalbank/pkg/domain-errors"
)

// IDs must be valid, non-empty, non-nil UUIDs.
func TestParseID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParsePrincipalID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseAccountID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseChallengeID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		raw := uuid.New()
		parsed, err := ParseTransactionID(raw.String())
		require.NoError(t, err)
		assert.Equal(t, TransactionID(raw), parsed)
		assert.Equal(t, raw.String(), parsed.String())
	})
}

func FuzzParsePrincipalID(f *testing.F) {
	f.Add("")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("'; DROP TABLE customers;--")

	f.Fuzz(func(t *testing.T, input string) {
		parsed, err := ParsePrincipalID(input)
		if err != nil {
			if !parsed.IsNil() {
				t.Fatalf("error returned with non-nil id %s", parsed)
			}
			return
		}
		if parsed.IsNil() {
			t.Fatalf("nil id accepted for %q", input)
		}
	})
}

func TestIDText(t *testing.T) {
	t.Run("round trips through JSON as a string", func(t *testing.T) {
		in := struct {
			Account AccountID `json:"account_id"`
		}{Account: NewAccountID()}
		raw, err := json.Marshal(in)
		require.NoError(t, err)
		assert.JSONEq(t, `{"account_id":"`+in.Account.String()+`"}`, string(raw))

		var out struct {
			Account AccountID `json:"account_id"`
		}
		require.NoError(t, json.Unmarshal(raw, &out))
		assert.Equal(t, in.Account, out.Account)
	})

	t.Run("empty string is the nil id", func(t *testing.T) {
		var v struct {
			Factor FactorID `json:"factor_id"`
		}
		require.NoError(t, json.Unmarshal([]byte(`{"factor_id":""}`), &v))
		assert.True(t, v.Factor.IsNil())
	})

	t.Run("malformed id is rejected", func(t *testing.T) {
		var v struct {
			Factor FactorID `json:"factor_id"`
		}
		assert.Error(t, json.Unmarshal([]byte(`{"factor_id":"nope"}`), &v))
	})
}
