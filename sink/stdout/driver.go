package stdout

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"eosearch/internal/search"
	"eosearch/sink"
)

/* ────────── public YAML config ────────── */
type Config struct {
	DelayMS      int  `yaml:"delay_ms"`      // artificial per-entry delay
	PrintCounter bool `yaml:"print_counter"` // prepend seq#
	Pretty       bool `yaml:"pretty"`        // indent JSON output
}

/* ────────── driver ────────── */
type driver struct {
	cfg Config

	mu  sync.Mutex // guards out
	out io.Writer
	seq atomic.Uint64
}

// New returns a stdout sink writing to w instead of os.Stdout.
func New(w io.Writer, cfg Config) sink.Adapter {
	return &driver{cfg: cfg, out: w}
}

/* ────────── sink.Adapter ────────── */
func (d *driver) Configure(raw any) error {
	var c Config
	if err := sink.Decode(raw, &c); err != nil {
		return fmt.Errorf("stdout-sink: %w", err)
	}
	d.cfg = c
	return nil
}

func (d *driver) Push(e search.Entry) error {
	if d.cfg.DelayMS > 0 {
		time.Sleep(time.Duration(d.cfg.DelayMS) * time.Millisecond)
	}

	var (
		b   []byte
		err error
	)
	if d.cfg.Pretty {
		b, err = json.MarshalIndent(e, "", "  ")
	} else {
		b, err = json.Marshal(e)
	}
	if err != nil {
		return fmt.Errorf("stdout-sink: encode %s: %w", e.ID(), err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.out == nil {
		d.out = os.Stdout
	}
	if d.cfg.PrintCounter {
		if _, err := fmt.Fprintf(d.out, "[sink %06d] ", d.seq.Add(1)); err != nil {
			return err
		}
	}
	b = append(b, '\n')
	_, err = d.out.Write(b)
	return err
}

func (d *driver) Close() error { return nil }

/* ────────── auto-register ────────── */
func init() {
	sink.Register("stdout", func() sink.Adapter { return &driver{} })
}
