package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProducer(t *testing.T) {
	p, err := NewProducer(Config{
		Brokers:  []string{"localhost:9092", "localhost:9093"},
		ClientID: "risk-calculation-service",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"localhost:9092", "localhost:9093"}, p.brokers)
	assert.Empty(t, p.writers)
	assert.Equal(t, "risk-calculation-service", p.transport.ClientID)
	assert.Nil(t, p.transport.SASL)
}

func TestNewProducer_UnsupportedSASL(t *testing.T) {
	_, err := NewProducer(Config{
		Brokers:       []string{"localhost:9092"},
		SASLEnabled:   true,
		SASLMechanism: "GSSAPI",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported SASL mechanism")
}

func TestConfig_SASLMechanism(t *testing.T) {
	tests := []struct {
		name      string
		mechanism string
		wantName  string
	}{
		{name: "plain", mechanism: "PLAIN", wantName: "PLAIN"},
		{name: "default is plain", mechanism: "", wantName: "PLAIN"},
		{name: "scram 256", mechanism: "SCRAM-SHA-256", wantName: "SCRAM-SHA-256"},
		{name: "scram 512", mechanism: "SCRAM-SHA-512", wantName: "SCRAM-SHA-512"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{SASLEnabled: true, SASLMechanism: tt.mechanism, SASLUsername: "u", SASLPassword: "p"}
			mech, err := cfg.saslMechanism()
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, mech.Name())
		})
	}

	mech, err := Config{}.saslMechanism()
	require.NoError(t, err)
	assert.Nil(t, mech)
}

func TestConfig_Dialer(t *testing.T) {
	d, err := Config{}.dialer()
	require.NoError(t, err)
	assert.Nil(t, d, "no dialer without TLS or SASL")

	d, err = Config{TLS: true, SASLEnabled: true, SASLUsername: "u"}.dialer()
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.NotNil(t, d.TLS)
	assert.Equal(t, plain.Mechanism{Username: "u"}, d.SASLMechanism)
}

func TestToKafkaMessage(t *testing.T) {
	km := toKafkaMessage(Message{
		Key:     []byte("batch_1"),
		Value:   []byte(`{"state":"COMPLETED"}`),
		Headers: map[string]string{"event_type": "risk.analysis.completed"},
	})

	assert.Equal(t, "batch_1", string(km.Key))
	require.Len(t, km.Headers, 1)
	assert.Equal(t, "event_type", km.Headers[0].Key)

	back := fromKafkaMessage(km)
	assert.Equal(t, "risk.analysis.completed", back.Headers["event_type"])
}

func TestGetOrCreateWriter(t *testing.T) {
	p, err := NewProducer(Config{Brokers: []string{"localhost:9092"}})
	require.NoError(t, err)

	w1 := p.getOrCreateWriter("topic-a")
	w2 := p.getOrCreateWriter("topic-a")
	w3 := p.getOrCreateWriter("topic-b")

	assert.Same(t, w1, w2)
	assert.NotSame(t, w1, w3)
	assert.Len(t, p.writers, 2)

	require.NoError(t, p.Close())
	assert.Empty(t, p.writers)
}

func TestPublish_NoMessagesIsNoop(t *testing.T) {
	p, err := NewProducer(Config{Brokers: []string{"localhost:9092"}})
	require.NoError(t, err)

	require.NoError(t, p.Publish(context.Background(), "topic-a"))
	assert.Empty(t, p.writers)
}

func TestRunWithRetry(t *testing.T) {
	t.Run("retries until success", func(t *testing.T) {
		calls := 0
		err := runWithRetry(context.Background(), 3, func() error {
			calls++
			if calls < 2 {
				return errors.New("transient")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("skip is not retried", func(t *testing.T) {
		calls := 0
		err := runWithRetry(context.Background(), 3, func() error {
			calls++
			return ErrSkipMessage
		})
		assert.ErrorIs(t, err, ErrSkipMessage)
		assert.Equal(t, 1, calls)
	})

	t.Run("zero retries runs once", func(t *testing.T) {
		calls := 0
		err := runWithRetry(context.Background(), 0, func() error {
			calls++
			return errors.New("boom")
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})
}
