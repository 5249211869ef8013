package errors

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/adfharrison1/restodb/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *UserError
		want string
	}{
		{"with underlying error", &UserError{Message: "Store unavailable", Err: fmt.Errorf("refused")}, "Store unavailable: refused"},
		{"without underlying error", &UserError{Message: "Invalid input"}, "Invalid input"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestFromError(t *testing.T) {
	schema := errors.Join(
		&domain.SchemaError{Collection: "ordenes", Index: "ordenes_usuario", Reason: "duplicate index name"},
		&domain.SchemaError{Collection: "usuarios", Reason: "duplicate collection name"},
	)
	unavailable := fmt.Errorf("%w: listCollections failed after 4 attempts: %w", domain.ErrStoreUnavailable,
		fmt.Errorf("%w: refused", domain.ErrConnection))

	tests := []struct {
		name     string
		err      error
		exitCode int
	}{
		{"schema", schema, ExitSchema},
		{"wrapped schema", fmt.Errorf("load: %w", schema), ExitSchema},
		{"store unavailable", unavailable, ExitUnavailable},
		{"connection", &domain.OpError{Op: "ping", Err: fmt.Errorf("%w: timeout", domain.ErrConnection)}, ExitUnavailable},
		{"conflict", &domain.OpError{Op: "createIndex", Err: domain.ErrIndexConflict}, ExitStore},
		{"unknown", errors.New("boom"), ExitInternal},
		{"user error", NewInputError("Unknown command", "", ""), ExitInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ue := FromError(tt.err)
			require.NotNil(t, ue)
			assert.Equal(t, tt.exitCode, ue.ExitCode)
			assert.ErrorIs(t, ue, tt.err)
		})
	}

	assert.Nil(t, FromError(nil))
}

func TestFromError_ListsEverySchemaProblem(t *testing.T) {
	schema := errors.Join(
		&domain.SchemaError{Collection: "ordenes", Index: "a", Reason: "duplicate index name"},
		&domain.SchemaError{Collection: "ordenes", Index: "b", Reason: "index has no keys"},
	)
	ue := FromError(fmt.Errorf("registry: %w", schema))
	assert.Contains(t, ue.Cause, "ordenes.a: duplicate index name")
	assert.Contains(t, ue.Cause, "ordenes.b: index has no keys")
}

func TestUserError_Format(t *testing.T) {
	err := NewUnavailableError("Store unavailable", "no answer", "check the URI", nil)
	out := err.Format(true)
	assert.Equal(t, "Error: Store unavailable\nCause: no answer\nFix:   check the URI\n", out)

	bare := &UserError{Message: "Only message"}
	assert.Equal(t, "Error: Only message\n", bare.Format(true))
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	code := Write(&buf, NewIndexFailuresError(2, errors.New("x")), true, true)
	assert.Equal(t, ExitIndexFailures, code)

	var decoded ErrorJSON
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "2 index action(s) failed", decoded.Error)
	assert.Equal(t, ExitIndexFailures, decoded.ExitCode)

	buf.Reset()
	assert.Equal(t, ExitSuccess, Write(&buf, nil, false, true))
	assert.Empty(t, buf.String())
}
