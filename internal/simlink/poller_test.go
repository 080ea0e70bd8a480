package simlink

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eytandecker/quadpilot/pkg/types"
)

// mockUpdater captures Update calls for assertion.
type mockUpdater struct {
	mu    sync.Mutex
	calls []types.VehicleState
}

func (m *mockUpdater) Update(st types.VehicleState) { //nolint:gocritic
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, st)
}

func (m *mockUpdater) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *mockUpdater) LastCall() (types.VehicleState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return types.VehicleState{}, false
	}
	return m.calls[len(m.calls)-1], true
}

func newConnectedPoller(t *testing.T, updater StateUpdater, cfg PollerConfig) (*Poller, net.Conn) {
	t.Helper()
	c := NewClient(defaultTestConfig())
	_, serverConn := connectAndDrainOpen(t, c)
	return NewPoller(c, updater, cfg, zerolog.Nop()), serverConn
}

func TestRegisterFieldsSendsAllDefinitions(t *testing.T) {
	p, serverConn := newConnectedPoller(t, &mockUpdater{}, DefaultPollerConfig())

	names := make(chan string, len(StateFields))
	go func() {
		for range StateFields {
			h, payload, err := readFrame(serverConn)
			if err != nil || h.Type != MsgDefineField {
				return
			}
			names <- string(trimNul(payload[4:]))
		}
	}()

	require.NoError(t, p.RegisterFields())

	for i, f := range StateFields {
		select {
		case name := <-names:
			assert.Equal(t, f.Name, name, "definition %d", i)
		case <-time.After(2 * time.Second):
			t.Fatalf("timeout waiting for definition %d", i)
		}
	}
}

func TestStartSendsRequestStateOnTick(t *testing.T) {
	p, serverConn := newConnectedPoller(t, &mockUpdater{}, PollerConfig{PollInterval: 20 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	requestSeen := make(chan struct{}, 1)
	go func() {
		for {
			h, _, err := readFrame(serverConn)
			if err != nil {
				return
			}
			if h.Type == MsgRequestState {
				select {
				case requestSeen <- struct{}{}:
				default:
				}
			}
		}
	}()

	go func() { _ = p.Start(ctx) }()

	select {
	case <-requestSeen:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for state request")
	}
}

func TestReadLoopProcessesVehicleState(t *testing.T) {
	updater := &mockUpdater{}
	p, serverConn := newConnectedPoller(t, updater, PollerConfig{PollInterval: 10 * time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	want := sampleState()
	payload := EncodeStatePayload(want)
	go func() {
		exc := append([]byte("bad definition"), 0)
		_, _ = serverConn.Write(append(EncodeHeader(MsgException, 7, len(exc)), exc...))
		_, _ = serverConn.Write(append(EncodeHeader(MsgVehicleState, ReqIDState, len(payload)), payload...))
		<-ctx.Done()
	}()

	go func() { _ = p.Start(ctx) }()

	require.Eventually(t, func() bool {
		return updater.CallCount() > 0
	}, 2*time.Second, 10*time.Millisecond, "expected at least one Update call")

	got, ok := updater.LastCall()
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestReadLoopSkipsShortState(t *testing.T) {
	updater := &mockUpdater{}
	p, serverConn := newConnectedPoller(t, updater, PollerConfig{PollInterval: 10 * time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	good := EncodeStatePayload(sampleState())
	go func() {
		_, _ = serverConn.Write(append(EncodeHeader(MsgVehicleState, ReqIDState, 16), make([]byte, 16)...))
		_, _ = serverConn.Write(append(EncodeHeader(MsgVehicleState, ReqIDState, len(good)), good...))
		<-ctx.Done()
	}()

	go func() { _ = p.Start(ctx) }()

	require.Eventually(t, func() bool {
		return updater.CallCount() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestReadLoopExitsOnEOF(t *testing.T) {
	p, serverConn := newConnectedPoller(t, &mockUpdater{}, PollerConfig{PollInterval: 10 * time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go func() {
		time.Sleep(30 * time.Millisecond)
		serverConn.Close()
	}()

	err := p.Start(ctx)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, context.DeadlineExceeded)
}

func TestStartExitsWhenContextCancelled(t *testing.T) {
	p, _ := newConnectedPoller(t, &mockUpdater{}, PollerConfig{PollInterval: 10 * time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Start(ctx) }()

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Start did not exit after context cancellation")
	}
}
