package simlink

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/geo/r3"

	"github.com/eytandecker/quadpilot/pkg/types"
)

// Config holds physics link client configuration.
type Config struct {
	Host    string
	Port    int
	Timeout time.Duration
	AppName string
}

// ConnectionState represents the client's connection lifecycle.
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Client manages a TCP connection to a remote physics engine. Writes are
// serialized; ReadNext must be called from a single goroutine.
type Client struct {
	config Config
	conn   net.Conn
	reader atomic.Pointer[connBox]
	state  atomic.Int32
	mu     sync.Mutex
	nextID atomic.Uint32
}

type connBox struct{ net.Conn }

// NewClient creates a new link client.
func NewClient(cfg Config) *Client {
	c := &Client{config: cfg}
	c.state.Store(int32(StateDisconnected))
	return c
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	return ConnectionState(c.state.Load())
}

// Connect dials the engine and sends the OPEN message.
func (c *Client) Connect(ctx context.Context) error {
	addr := net.JoinHostPort(c.config.Host, fmt.Sprint(c.config.Port))
	dialer := net.Dialer{Timeout: c.config.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("simlink dial %s: %w", addr, err)
	}
	return c.connectWithConn(ctx, conn)
}

// connectWithConn performs the OPEN handshake on an existing net.Conn.
func (c *Client) connectWithConn(ctx context.Context, conn net.Conn) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("simlink connect: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.Store(int32(StateConnecting))
	c.conn = conn

	appName := append([]byte(c.config.AppName), 0)
	if err := c.sendMessageLocked(MsgOpen, appName); err != nil {
		c.state.Store(int32(StateDisconnected))
		return fmt.Errorf("simlink open: %w", err)
	}

	c.reader.Store(&connBox{conn})
	c.state.Store(int32(StateConnected))
	return nil
}

// Close sends a CLOSE message and shuts down the TCP connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	// Best effort; the peer may already be gone.
	_ = c.sendMessageLocked(MsgClose, nil)

	err := c.conn.Close()
	c.conn = nil
	c.reader.Store(nil)
	c.state.Store(int32(StateDisconnected))
	return err
}

func (c *Client) sendMessage(msgType uint32, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendMessageLocked(msgType, payload)
}

// sendMessageLocked writes one frame; caller must hold c.mu. A failed write
// means the link dropped and is reported as a recoverable SimulatorError.
func (c *Client) sendMessageLocked(msgType uint32, payload []byte) error {
	if c.conn == nil {
		return ErrNotConnected
	}

	id := c.nextID.Add(1)
	frame := append(EncodeHeader(msgType, id, len(payload)), payload...)
	if _, err := c.conn.Write(frame); err != nil {
		return &types.SimulatorError{Err: err, Message: "write frame", Recoverable: true}
	}
	return nil
}

// ReadNext reads the next complete framed message from the link.
func (c *Client) ReadNext() (Header, []byte, error) {
	b := c.reader.Load()
	if b == nil {
		return Header{}, nil, ErrNotConnected
	}
	return readFrame(b.Conn)
}

func readFrame(r io.Reader) (Header, []byte, error) {
	headerBuf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, headerBuf); err != nil {
		return Header{}, nil, fmt.Errorf("read header: %w", err)
	}

	h, err := DecodeHeader(headerBuf)
	if err != nil {
		return Header{}, nil, err
	}

	payloadSize := h.Size - HeaderSize
	if payloadSize == 0 {
		return h, nil, nil
	}

	payload := make([]byte, payloadSize)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Header{}, nil, fmt.Errorf("read payload: %w", err)
	}
	return h, payload, nil
}

// DefineField registers one state field under a definition ID.
func (c *Client) DefineField(defID uint32, f Field) error {
	// defID uint32, name\0, unit\0, size uint32
	name := append([]byte(f.Name), 0)
	unit := append([]byte(f.Unit), 0)

	payload := make([]byte, 0, 4+len(name)+len(unit)+4)
	payload = binary.LittleEndian.AppendUint32(payload, defID)
	payload = append(payload, name...)
	payload = append(payload, unit...)
	payload = binary.LittleEndian.AppendUint32(payload, uint32(f.Size)) //nolint:gosec // field sizes are 8

	return c.sendMessage(MsgDefineField, payload)
}

// RequestState asks the engine for one MsgVehicleState frame.
func (c *Client) RequestState(defID, requestID uint32) error {
	payload := make([]byte, 0, 8)
	payload = binary.LittleEndian.AppendUint32(payload, requestID)
	payload = binary.LittleEndian.AppendUint32(payload, defID)
	return c.sendMessage(MsgRequestState, payload)
}

// ApplyForce sends a world-space force applied at a world-space point.
func (c *Client) ApplyForce(force, point r3.Vector) error {
	return c.sendMessage(MsgApplyForce, EncodeForcePayload(force, point))
}
