package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokersFromEnv(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "broker-1:9092, broker-2:9092,,")

	brokers, err := brokersFromEnv()
	require.NoError(t, err)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, brokers)
}

func TestBrokersFromEnv_Unset(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "")

	_, err := brokersFromEnv()
	assert.Error(t, err)
}
