package video

import (
	"fmt"
	"math/rand"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/goliath-teleop/core/pkg/config"
	"github.com/goliath-teleop/core/pkg/log"
	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
)

// ClockRate is the RTP clock for H.264.
const ClockRate = 90000

// RTPStreamer packetizes H.264 access units into RTP and sends them over UDP
// to one receiver.
type RTPStreamer struct {
	target      string
	payloadType uint8
	mtu         uint16
	logger      log.Logger

	mu         sync.Mutex
	conn       net.Conn
	packetizer rtp.Packetizer
	sent       uint64
}

// NewRTPStreamer targets host:cfg.RTPPort. Nothing is opened until Start.
func NewRTPStreamer(host string, cfg config.VideoConfig, logger log.Logger) *RTPStreamer {
	return &RTPStreamer{
		target:      net.JoinHostPort(host, strconv.Itoa(cfg.RTPPort)),
		payloadType: cfg.PayloadType,
		mtu:         uint16(cfg.MTU),
		logger:      logger.WithField("component", "video"),
	}
}

// NewPipeline returns an RTPStreamer toward host, or a NopPipeline when video
// is disabled.
func NewPipeline(host string, cfg config.VideoConfig, logger log.Logger) Pipeline {
	if !cfg.Enabled {
		return NopPipeline{}
	}
	return NewRTPStreamer(host, cfg, logger)
}

func (s *RTPStreamer) Start(caps *Caps) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return nil
	}
	if caps != nil {
		if caps.PayloadType > 127 {
			return fmt.Errorf("video: payload type %d", caps.PayloadType)
		}
		if caps.PayloadType != 0 {
			s.payloadType = caps.PayloadType
		}
		if caps.MTU > 0 {
			s.mtu = uint16(caps.MTU)
		}
	}
	conn, err := net.Dial("udp", s.target)
	if err != nil {
		return fmt.Errorf("video: dial %s: %w", s.target, err)
	}
	s.conn = conn
	s.packetizer = rtp.NewPacketizer(s.mtu, s.payloadType, rand.Uint32(),
		&codecs.H264Payloader{}, rtp.NewRandomSequencer(), ClockRate)
	s.logger.Infof("Streaming RTP to %s (pt=%d mtu=%d)", s.target, s.payloadType, s.mtu)
	return nil
}

// Push packetizes one access unit and sends its packets.
func (s *RTPStreamer) Push(frame []byte, duration time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return ErrNotRunning
	}
	samples := uint32(duration * ClockRate / time.Second)
	for _, pkt := range s.packetizer.Packetize(frame, samples) {
		data, err := pkt.Marshal()
		if err != nil {
			return fmt.Errorf("video: marshal rtp: %w", err)
		}
		if _, err := s.conn.Write(data); err != nil {
			return fmt.Errorf("video: send rtp: %w", err)
		}
		s.sent++
	}
	return nil
}

func (s *RTPStreamer) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	s.logger.Infof("Stopped RTP stream to %s after %d packets", s.target, s.sent)
	return err
}

// Sent counts packets written since creation.
func (s *RTPStreamer) Sent() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent
}
