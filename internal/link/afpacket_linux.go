package link

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/gopacket/afpacket"

	"firestige.xyz/vswitch/internal/core"
	"firestige.xyz/vswitch/internal/log"
)

// pollTimeout bounds how long ReadFrame blocks, so Close never waits longer
// than this for an in-flight read.
const pollTimeout = 200 * time.Millisecond

type afpacketHandle struct {
	name string
	hw   net.HardwareAddr

	mu      sync.RWMutex
	tpacket *afpacket.TPacket
}

func init() {
	Register("afpacket", openAFPacket)
}

func openAFPacket(name string, opts Options) (Handle, error) {
	hw, err := prepareInterface(name, true)
	if err != nil {
		return nil, err
	}

	frameSize, blockSize, numBlocks, err := computeFrameSizeAndBlocks(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to compute frame size and blocks: %w", err)
	}

	log.GetLogger().WithFields(map[string]interface{}{
		"interface":   name,
		"frame_size":  frameSize,
		"block_size":  blockSize,
		"num_blocks":  numBlocks,
		"buffer_size": opts.BufferSize,
		"snap_len":    opts.SnapLen,
	}).Info("tpacket configuration")

	tp, err := afpacket.NewTPacket(
		afpacket.OptInterface(name),
		afpacket.OptFrameSize(frameSize),
		afpacket.OptBlockSize(blockSize),
		afpacket.OptNumBlocks(numBlocks),
		afpacket.OptPollTimeout(pollTimeout),
		afpacket.SocketRaw,
		afpacket.TPacketVersion3,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create TPacket: %w", err)
	}

	prog, err := CompileFilter(opts.Filter, opts.SnapLen)
	if err != nil {
		tp.Close()
		return nil, err
	}
	if err := tp.SetBPF(prog); err != nil {
		tp.Close()
		return nil, fmt.Errorf("failed to set BPF filter: %w", err)
	}

	return &afpacketHandle{name: name, hw: hw, tpacket: tp}, nil
}

// computeFrameSizeAndBlocks sizes the TPACKET_V3 ring: frames are page
// aligned and each block holds 128 frames.
func computeFrameSizeAndBlocks(opts Options) (frameSize, blockSize, numBlocks int, err error) {
	if opts.SnapLen <= 0 {
		return 0, 0, 0, fmt.Errorf("invalid snap length %d", opts.SnapLen)
	}
	pageSize := os.Getpagesize()
	if opts.SnapLen < pageSize {
		frameSize = pageSize / (pageSize / opts.SnapLen)
	} else {
		frameSize = (opts.SnapLen/pageSize + 1) * pageSize
	}
	blockSize = frameSize * 128
	numBlocks = opts.BufferSize / blockSize

	if numBlocks < 1 {
		return 0, 0, 0, fmt.Errorf("buffer size %d too small for frame size %d", opts.BufferSize, frameSize)
	}
	return frameSize, blockSize, numBlocks, nil
}

func (h *afpacketHandle) Name() string                   { return h.name }
func (h *afpacketHandle) HardwareAddr() net.HardwareAddr { return h.hw }

func (h *afpacketHandle) ReadFrame() ([]byte, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.tpacket == nil {
		return nil, core.ErrLinkClosed
	}

	data, _, err := h.tpacket.ReadPacketData()
	if err != nil {
		if errors.Is(err, afpacket.ErrTimeout) {
			return nil, ErrTimeout
		}
		return nil, err
	}
	return data, nil
}

func (h *afpacketHandle) WriteFrame(data []byte) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.tpacket == nil {
		return core.ErrLinkClosed
	}
	return h.tpacket.WritePacketData(data)
}

// Close waits for an in-flight read, which returns within pollTimeout.
func (h *afpacketHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.tpacket != nil {
		h.tpacket.Close()
		h.tpacket = nil
	}
	return nil
}
