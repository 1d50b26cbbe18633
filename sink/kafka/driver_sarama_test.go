package kafka

import (
	"encoding/json"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"eosearch/internal/metadata"
	"eosearch/internal/search"
)

func entry() search.Entry {
	props := metadata.NewPropertyBag()
	props.Set("id", "ERA5_SL_20200101")
	props.Set("cloudCover", 12.5)
	return search.Entry{Provider: "cds", ProductType: "ERA5_SL", Properties: props}
}

func TestPushJSON(t *testing.T) {
	p := mocks.NewSyncProducer(t, nil)
	p.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var got struct {
			Properties map[string]any `json:"properties"`
		}
		if err := json.Unmarshal(val, &got); err != nil {
			return err
		}
		assert.Equal(t, "ERA5_SL_20200101", got.Properties["id"])
		return nil
	})

	s, err := NewWithProducer(p, Config{Topic: "entries"})
	require.NoError(t, err)
	require.NoError(t, s.Push(entry()))
	require.NoError(t, s.Close())
}

func TestPushProtobuf(t *testing.T) {
	p := mocks.NewSyncProducer(t, nil)
	p.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		key, err := msg.Key.Encode()
		require.NoError(t, err)
		assert.Equal(t, entry().ID(), string(key))

		val, err := msg.Value.Encode()
		require.NoError(t, err)
		var s structpb.Struct
		require.NoError(t, proto.Unmarshal(val, &s))
		props := s.GetFields()["properties"].GetStructValue().GetFields()
		assert.Equal(t, 12.5, props["cloudCover"].GetNumberValue())
		return nil
	})

	s, err := NewWithProducer(p, Config{Topic: "entries", Encoding: EncodingProtobuf})
	require.NoError(t, err)
	require.NoError(t, s.Push(entry()))
	require.NoError(t, s.Close())
}

func TestPushError(t *testing.T) {
	p := mocks.NewSyncProducer(t, nil)
	p.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	s, err := NewWithProducer(p, Config{Topic: "entries"})
	require.NoError(t, err)
	assert.ErrorIs(t, s.Push(entry()), sarama.ErrOutOfBrokers)
	require.NoError(t, s.Close())
}

func TestConfigRejects(t *testing.T) {
	_, err := NewWithProducer(nil, Config{})
	assert.Error(t, err)
	_, err = NewWithProducer(nil, Config{Topic: "t", Encoding: "avro"})
	assert.Error(t, err)

	d := &driver{}
	assert.Error(t, d.Configure(map[string]any{"topic": "t"}), "brokers are required")
}
