package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalSubmit(t *testing.T) {
	data, err := Marshal(MsgSubmit, SubmitPayload{Text: "Hello"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"submit","payload":{"text":"Hello"}}`, string(data))

	msgType, raw, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, MsgSubmit, msgType)

	p, err := UnmarshalPayload[SubmitPayload](raw)
	require.NoError(t, err)
	assert.Equal(t, "Hello", p.Text)
}

func TestMarshal_NilPayload(t *testing.T) {
	data, err := Marshal(MsgInputCleared, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"input_cleared"}`, string(data))
}

func TestUnmarshal_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"not json", "hello"},
		{"missing type", `{"payload":{"text":"x"}}`},
		{"truncated", `{"type":"submit"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Unmarshal([]byte(tt.in))
			assert.Error(t, err)
		})
	}
}

func TestUnmarshalPayload_Errors(t *testing.T) {
	_, err := UnmarshalPayload[SubmitPayload](nil)
	assert.Error(t, err)

	_, err = UnmarshalPayload[SubmitPayload](RawMessage(`{"text":42}`))
	assert.Error(t, err)
}
