package capture

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/orpheas/discord-voice-summary/internal/audio"
	"github.com/orpheas/discord-voice-summary/internal/codec"
	"github.com/orpheas/discord-voice-summary/internal/metrics"
)

// DefaultSilenceTimeout ends a speaking turn after this much inactivity.
// Shorter clips words, longer merges adjacent turns from the same speaker.
const DefaultSilenceTimeout = 100 * time.Millisecond

// Config contains capture coordinator configuration
type Config struct {
	SampleRate     int
	Channels       int
	SilenceTimeout time.Duration
}

// Coordinator consumes the voice connection's Opus packet stream and drives
// it through per-speaker decoders into the shared session buffer. One turn
// exists per SSRC at a time; concurrent speakers produce concurrent turns
// that append to the same buffer in arrival order.
type Coordinator struct {
	config  Config
	buffer  *audio.Buffer
	logger  *slog.Logger
	metrics *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Statistics
	packetsReceived uint64
	turnsStarted    uint64
	decodeErrors    uint64
	mu              sync.RWMutex
}

// turn is one speaking turn: a packet stream scoped to a single SSRC,
// decoded by its own decoder until the silence timeout fires
type turn struct {
	ssrc   uint32
	frames chan []byte
}

// NewCoordinator creates a capture coordinator appending into buffer
func NewCoordinator(cfg Config, buffer *audio.Buffer, logger *slog.Logger, m *metrics.Metrics) *Coordinator {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = audio.SampleRate
	}
	if cfg.Channels == 0 {
		cfg.Channels = audio.Channels
	}
	if cfg.SilenceTimeout <= 0 {
		cfg.SilenceTimeout = DefaultSilenceTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Coordinator{
		config:  cfg,
		buffer:  buffer,
		logger:  logger,
		metrics: m,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start begins consuming packets from the given stream. It returns
// immediately; capture stops when the stream closes or Stop is called.
func (c *Coordinator) Start(packets <-chan *discordgo.Packet) {
	c.wg.Add(1)
	go c.run(packets)
}

// Stop ends all active turns and waits for them to release their decoders
func (c *Coordinator) Stop() {
	c.cancel()
	c.wg.Wait()
}

// run routes packets to per-SSRC turns until the stream closes
func (c *Coordinator) run(packets <-chan *discordgo.Packet) {
	defer c.wg.Done()

	turns := make(map[uint32]*turn)
	ended := make(chan uint32)
	runDone := make(chan struct{})

	defer func() {
		// Unblock turns waiting to report their end, then close their
		// streams; buffered frames are still decoded before each turn exits.
		close(runDone)
		for _, t := range turns {
			close(t.frames)
		}
	}()

	for {
		select {
		case <-c.ctx.Done():
			return

		case ssrc := <-ended:
			close(turns[ssrc].frames)
			delete(turns, ssrc)

		case pkt, ok := <-packets:
			if !ok {
				c.logger.Debug("Voice packet stream closed")
				return
			}

			c.mu.Lock()
			c.packetsReceived++
			c.mu.Unlock()

			if c.metrics != nil {
				c.metrics.RecordVoicePacket()
			}

			t, exists := turns[pkt.SSRC]
			if !exists {
				t = c.startTurn(pkt.SSRC, ended, runDone)
				if t == nil {
					continue
				}
				turns[pkt.SSRC] = t
			}

			select {
			case t.frames <- pkt.Opus:
			default:
				// Turn is backlogged; dropping one frame beats blocking
				// every other speaker's stream.
				c.logger.Warn("Dropping voice frame, turn backlogged",
					slog.Uint64("ssrc", uint64(pkt.SSRC)),
				)
			}
		}
	}
}

// startTurn spawns a goroutine owning one decoder for one speaking turn
func (c *Coordinator) startTurn(ssrc uint32, ended chan<- uint32, runDone <-chan struct{}) *turn {
	dec, err := codec.NewDecoder(c.config.SampleRate, c.config.Channels)
	if err != nil {
		c.logger.Error("Failed to create decoder for speaking turn",
			slog.Uint64("ssrc", uint64(ssrc)),
			slog.String("error", err.Error()),
		)
		return nil
	}

	t := &turn{
		ssrc:   ssrc,
		frames: make(chan []byte, 64),
	}

	c.mu.Lock()
	c.turnsStarted++
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.RecordTurnStarted()
	}

	c.logger.Debug("Speaking turn started", slog.Uint64("ssrc", uint64(ssrc)))

	c.wg.Add(1)
	go c.turnLoop(t, dec, ended, runDone)

	return t
}

// turnLoop decodes frames for one turn until silence or shutdown.
// The decoder is released on every exit path.
func (c *Coordinator) turnLoop(t *turn, dec *codec.Decoder, ended chan<- uint32, runDone <-chan struct{}) {
	defer c.wg.Done()
	defer dec.Close()

	start := time.Now()
	timer := time.NewTimer(c.config.SilenceTimeout)
	defer timer.Stop()

	notifyEnded := func() {
		select {
		case ended <- t.ssrc:
		case <-runDone:
		case <-c.ctx.Done():
		}
	}

	for {
		select {
		case <-c.ctx.Done():
			c.drainRemaining(t, dec)
			c.finishTurn(t, dec, start)
			return

		case <-timer.C:
			c.finishTurn(t, dec, start)
			notifyEnded()
			return

		case frame, ok := <-t.frames:
			if !ok {
				c.finishTurn(t, dec, start)
				return
			}

			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(c.config.SilenceTimeout)

			pcm, err := dec.Decode(frame)
			if err != nil {
				// Corrupt frames are expected on live streams: log, count,
				// skip, keep capturing.
				c.mu.Lock()
				c.decodeErrors++
				c.mu.Unlock()

				if c.metrics != nil {
					c.metrics.RecordDecodeError()
				}

				c.logger.Warn("Skipping undecodable voice frame",
					slog.Uint64("ssrc", uint64(t.ssrc)),
					slog.Int("frame_bytes", len(frame)),
					slog.String("error", err.Error()),
				)
				continue
			}

			if len(pcm) > 0 {
				c.buffer.Append(pcm)
				if c.metrics != nil {
					c.metrics.RecordFrameDecoded(len(pcm))
				}
			}
		}
	}
}

// drainRemaining flushes frames already queued for a turn during shutdown
// so a stop does not truncate the tail of the recording
func (c *Coordinator) drainRemaining(t *turn, dec *codec.Decoder) {
	for {
		select {
		case frame, ok := <-t.frames:
			if !ok {
				return
			}
			pcm, err := dec.Decode(frame)
			if err != nil {
				continue
			}
			if len(pcm) > 0 {
				c.buffer.Append(pcm)
			}
		default:
			return
		}
	}
}

// finishTurn logs turn completion statistics
func (c *Coordinator) finishTurn(t *turn, dec *codec.Decoder, start time.Time) {
	if c.metrics != nil {
		c.metrics.RecordTurnEnded(time.Since(start).Seconds())
	}

	c.logger.Debug("Speaking turn ended",
		slog.Uint64("ssrc", uint64(t.ssrc)),
		slog.Duration("duration", time.Since(start)),
		slog.Uint64("frames_decoded", dec.FramesDecoded()),
		slog.Uint64("frames_failed", dec.FramesFailed()),
	)
}

// Stats returns coordinator counters for monitoring
type Stats struct {
	PacketsReceived uint64 `json:"packets_received"`
	TurnsStarted    uint64 `json:"turns_started"`
	DecodeErrors    uint64 `json:"decode_errors"`
}

// GetStats returns a snapshot of coordinator counters
func (c *Coordinator) GetStats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Stats{
		PacketsReceived: c.packetsReceived,
		TurnsStarted:    c.turnsStarted,
		DecodeErrors:    c.decodeErrors,
	}
}
