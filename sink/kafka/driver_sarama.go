package kafka

import (
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"eosearch/internal/search"
	"eosearch/sink"
)

// Payload encodings.
const (
	EncodingJSON     = "json"
	EncodingProtobuf = "protobuf"
)

type Config struct {
	Brokers  []string `yaml:"brokers"`
	Topic    string   `yaml:"topic"`
	Acks     int16    `yaml:"required_acks"` // 0,1,-1
	Version  string   `yaml:"version"`
	Encoding string   `yaml:"encoding"` // json|protobuf (default json)
}

type driver struct {
	cfg Config
	p   sarama.SyncProducer
}

// NewWithProducer returns a sink publishing through p.
func NewWithProducer(p sarama.SyncProducer, cfg Config) (sink.Adapter, error) {
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &driver{cfg: cfg, p: p}, nil
}

func validate(cfg *Config) error {
	if cfg.Topic == "" {
		return fmt.Errorf("kafka-sink: topic is required")
	}
	switch cfg.Encoding {
	case "":
		cfg.Encoding = EncodingJSON
	case EncodingJSON, EncodingProtobuf:
	default:
		return fmt.Errorf("kafka-sink: unknown encoding %q", cfg.Encoding)
	}
	return nil
}

func (d *driver) Configure(c any) error {
	var cfg Config
	if err := sink.Decode(c, &cfg); err != nil {
		return fmt.Errorf("kafka-sink: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return err
	}
	if len(cfg.Brokers) == 0 {
		return fmt.Errorf("kafka-sink: brokers are required")
	}
	d.cfg = cfg

	sc := sarama.NewConfig()
	sc.Producer.RequiredAcks = sarama.RequiredAcks(cfg.Acks)
	sc.Producer.Return.Successes = true
	if cfg.Version != "" {
		ver, err := sarama.ParseKafkaVersion(cfg.Version)
		if err != nil {
			return err
		}
		sc.Version = ver
	}
	var err error
	d.p, err = sarama.NewSyncProducer(cfg.Brokers, sc)
	return err
}

func (d *driver) Push(e search.Entry) error {
	value, err := encode(e, d.cfg.Encoding)
	if err != nil {
		return fmt.Errorf("kafka-sink: encode %s: %w", e.ID(), err)
	}
	_, _, err = d.p.SendMessage(&sarama.ProducerMessage{
		Topic: d.cfg.Topic,
		Key:   sarama.StringEncoder(e.ID()),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("provider"), Value: []byte(e.Provider)},
			{Key: []byte("product_type"), Value: []byte(e.ProductType)},
		},
	})
	return err
}

func (d *driver) Close() error {
	if d.p == nil {
		return nil
	}
	err := d.p.Close()
	d.p = nil
	return err
}

func encode(e search.Entry, encoding string) ([]byte, error) {
	if encoding != EncodingProtobuf {
		return json.Marshal(e)
	}
	// structpb only takes JSON-shaped values.
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	s, err := structpb.NewStruct(generic)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

func init() { sink.Register("kafka", func() sink.Adapter { return &driver{} }) }
