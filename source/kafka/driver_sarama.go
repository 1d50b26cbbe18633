package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"

	"eosearch/internal/logging"
	"eosearch/internal/spec"
)

type SaramaDriver struct {
	cfg   Config
	mode  CommitMode
	cl    sarama.Client
	group sarama.ConsumerGroup
	bp    *Controller
	cp    *Committer
	acks  *ackQueue
}

var _ AckAware = (*SaramaDriver)(nil)

func (d *SaramaDriver) Configure(config Config) error {
	d.init(config)

	ver, err := sarama.ParseKafkaVersion(config.Version)
	if err != nil {
		return err
	}
	sc := sarama.NewConfig()
	sc.Version = ver
	sc.Consumer.Return.Errors = true
	sc.Consumer.Offsets.AutoCommit.Enable = false
	if config.TLSEn {
		sc.Net.TLS.Enable = true
	}
	if config.SASLUser != "" {
		sc.Net.SASL.Enable = true
		sc.Net.SASL.User, sc.Net.SASL.Password = config.SASLUser, config.SASLPass
	}
	switch config.StartFrom {
	case "oldest":
		sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	default:
		sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	}

	if d.cl, err = sarama.NewClient(config.Brokers, sc); err != nil {
		return err
	}
	d.group, err = sarama.NewConsumerGroupFromClient(config.GroupID, d.cl)
	return err
}

func (d *SaramaDriver) init(config Config) {
	d.cfg, d.mode = config, config.CommitMode
	d.bp = NewController(config.BackPressure.Capacity)
	d.cp = NewCommitter(config.Checkpoint.CommitInt)
	d.acks = newAckQueue()
}

func (d *SaramaDriver) Run(ctx context.Context, emit EmitFunc) error {
	handler := &groupHandler{driver: d, emit: emit}

	go func() {
		for err := range d.group.Errors() {
			logging.L().Warn("kafka source: consumer error", "err", err)
		}
	}()
	for {
		if err := d.group.Consume(ctx, d.cfg.Topics, handler); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (d *SaramaDriver) Close() error {
	if d.group != nil {
		_ = d.group.Close()
	}
	if d.cl != nil {
		return d.cl.Close()
	}
	return nil
}

// OnAck queues the ack of a request. It never blocks and never drops an
// ack. Acks only matter in e2e mode.
func (d *SaramaDriver) OnAck(cp Checkpoint) {
	if d.mode != CommitE2E {
		return
	}
	d.acks.push(cp)
}

type groupHandler struct {
	driver *SaramaDriver
	emit   EmitFunc
}

func (*groupHandler) Setup(sarama.ConsumerGroupSession) error { return nil }

// Cleanup forgets the requests still awaiting an ack and frees their slots.
// They are redelivered to whichever member owns the partition next.
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	if dropped := h.driver.cp.Reset(); dropped > 0 {
		h.driver.bp.ReleaseN(dropped)
		logging.L().Info("kafka source: rebalance cleared pending acks", "count", dropped)
	}
	return nil
}

func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	d := h.driver
	ctx := sess.Context()
	for {
		if !d.bp.TryAcquire() {
			select {
			case <-d.acks.Ready():
				h.resolveQueued(sess)
				continue
			case <-ctx.Done():
				return nil
			}
		}

		select {
		case <-ctx.Done():
			d.bp.Release()
			return nil

		case <-d.acks.Ready():
			d.bp.Release()
			h.resolveQueued(sess)

		case msg, ok := <-claim.Messages():
			if !ok {
				d.bp.Release()
				return nil
			}
			req, err := decodeRequest(msg)
			if err != nil {
				logging.L().Warn("kafka source: skipping malformed request", "topic", msg.Topic, "offset", msg.Offset, "err", err)
				h.commit(sess, msg)
				d.bp.Release()
				continue
			}
			if d.mode == CommitE2E {
				d.cp.Track(msg)
			}
			if err := h.emit(ctx, req); err != nil {
				d.cp.Resolve(req.Checkpoint)
				d.bp.Release()
				return err
			}
			if d.mode == CommitAuto {
				h.commit(sess, msg)
				d.bp.Release()
			}
		}
	}
}

func (h *groupHandler) resolveQueued(sess sarama.ConsumerGroupSession) {
	for _, cp := range h.driver.acks.drain() {
		h.resolve(sess, cp)
	}
}

// resolve commits the message an ack refers to and frees its slot. Acks of
// messages dropped by a rebalance are ignored.
func (h *groupHandler) resolve(sess sarama.ConsumerGroupSession, cp Checkpoint) {
	msg, ok := h.driver.cp.Resolve(cp)
	if !ok {
		return
	}
	h.commit(sess, msg)
	h.driver.bp.Release()
	logging.L().Debug("kafka ack released", "topic", cp.Topic, "partition", cp.Partition, "offset", cp.Offset)
}

func (h *groupHandler) commit(sess sarama.ConsumerGroupSession, msg *sarama.ConsumerMessage) {
	sess.MarkMessage(msg, "")
	if h.driver.cp.Due() {
		sess.Commit()
	}
}

func decodeRequest(msg *sarama.ConsumerMessage) (Request, error) {
	var s spec.SearchSpec
	if err := json.Unmarshal(msg.Value, &s); err != nil {
		return Request{}, err
	}
	if s.Provider == "" {
		return Request{}, fmt.Errorf("request names no provider")
	}
	return Request{Search: s, Checkpoint: checkpointOf(msg)}, nil
}
