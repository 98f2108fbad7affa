package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	m, err := Decode([]byte(`{"id":"e1","type":"OrderPaid","correlation_id":"o1","payload":{"order_no":"ORDER1"}}`))
	require.NoError(t, err)
	assert.Equal(t, "e1", m.ID)
	assert.Equal(t, TypeOrderPaid, m.Type)
	assert.JSONEq(t, `{"order_no":"ORDER1"}`, string(m.Payload))

	for name, raw := range map[string]string{
		"not json":     `not json`,
		"missing id":   `{"type":"OrderPaid"}`,
		"missing type": `{"id":"e1"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(raw))
			assert.Error(t, err)
		})
	}
}
