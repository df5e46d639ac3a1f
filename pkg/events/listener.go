package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
)

// listenCmd is a LISTEN/UNLISTEN command executed by the receive loop,
// which is the sole goroutine touching the pgx connection.
type listenCmd struct {
	sql    string
	result chan error
}

// NotifyListener receives PostgreSQL NOTIFY events on a dedicated
// connection and dispatches them to the local ConnectionManager.
type NotifyListener struct {
	connString string
	conn       *pgx.Conn
	connMu     sync.Mutex
	manager    *ConnectionManager
	channels   map[string]bool
	channelsMu sync.RWMutex

	// cmdCh serializes LISTEN/UNLISTEN through the receive loop. This
	// avoids the "conn busy" race between WaitForNotification and Exec.
	cmdCh   chan listenCmd
	running atomic.Bool

	cancelLoop context.CancelFunc
	loopDone   chan struct{}
}

func NewNotifyListener(connString string, manager *ConnectionManager) *NotifyListener {
	return &NotifyListener{
		connString: connString,
		manager:    manager,
		channels:   make(map[string]bool),
		cmdCh:      make(chan listenCmd, 16),
	}
}

// Start establishes the dedicated LISTEN connection and begins receiving.
func (l *NotifyListener) Start(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, l.connString)
	if err != nil {
		return fmt.Errorf("failed to connect for LISTEN: %w", err)
	}

	l.connMu.Lock()
	l.conn = conn
	l.connMu.Unlock()

	l.running.Store(true)

	loopCtx, cancel := context.WithCancel(ctx)
	l.cancelLoop = cancel
	l.loopDone = make(chan struct{})
	go func() {
		defer close(l.loopDone)
		l.receiveLoop(loopCtx)
	}()

	slog.Info("NotifyListener started")
	return nil
}

// Subscribe sends LISTEN for a channel on the dedicated connection.
func (l *NotifyListener) Subscribe(ctx context.Context, channel string) error {
	l.channelsMu.Lock()
	if l.channels[channel] {
		l.channelsMu.Unlock()
		return nil
	}
	l.channelsMu.Unlock()

	if !l.running.Load() {
		return fmt.Errorf("LISTEN connection not established")
	}

	sanitized := pgx.Identifier{channel}.Sanitize()
	cmd := listenCmd{
		sql:    "LISTEN " + sanitized,
		result: make(chan error, 1),
	}

	select {
	case l.cmdCh <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-cmd.result:
		if err != nil {
			return fmt.Errorf("LISTEN %s failed: %w", sanitized, err)
		}
		l.channelsMu.Lock()
		l.channels[channel] = true
		l.channelsMu.Unlock()
		slog.Debug("Subscribed to NOTIFY channel", "channel", channel)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Unsubscribe sends UNLISTEN for a channel.
func (l *NotifyListener) Unsubscribe(ctx context.Context, channel string) error {
	l.channelsMu.Lock()
	if !l.channels[channel] {
		l.channelsMu.Unlock()
		return nil
	}
	l.channelsMu.Unlock()

	if !l.running.Load() {
		return nil
	}

	sanitized := pgx.Identifier{channel}.Sanitize()
	cmd := listenCmd{
		sql:    "UNLISTEN " + sanitized,
		result: make(chan error, 1),
	}

	select {
	case l.cmdCh <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-cmd.result:
		if err != nil {
			return fmt.Errorf("UNLISTEN %s failed: %w", sanitized, err)
		}
		l.channelsMu.Lock()
		delete(l.channels, channel)
		l.channelsMu.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// receiveLoop continuously receives notifications and dispatches them
// to the ConnectionManager. Sole user of the pgx connection.
func (l *NotifyListener) receiveLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		l.processPendingCmds(ctx)

		l.connMu.Lock()
		conn := l.conn
		l.connMu.Unlock()

		if conn == nil {
			l.reconnect(ctx)
			continue
		}

		// Short timeout so the loop periodically returns to process
		// pending LISTEN/UNLISTEN commands.
		waitCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		notification, err := conn.WaitForNotification(waitCtx)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if waitCtx.Err() != nil {
				continue
			}
			slog.Error("NOTIFY receive error", "error", err)
			l.reconnect(ctx)
			continue
		}

		l.manager.Broadcast(notification.Channel, []byte(notification.Payload))
	}
}

func (l *NotifyListener) processPendingCmds(ctx context.Context) {
	for {
		select {
		case cmd := <-l.cmdCh:
			l.connMu.Lock()
			conn := l.conn
			l.connMu.Unlock()

			if conn == nil {
				cmd.result <- fmt.Errorf("LISTEN connection not established")
				continue
			}

			_, err := conn.Exec(ctx, cmd.sql)
			cmd.result <- err
		default:
			return
		}
	}
}

// reconnect re-establishes the LISTEN connection with exponential
// backoff and re-issues LISTEN for every subscribed channel.
func (l *NotifyListener) reconnect(ctx context.Context) {
	l.connMu.Lock()
	defer l.connMu.Unlock()

	if l.conn != nil {
		_ = l.conn.Close(ctx)
		l.conn = nil
	}

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		conn, err := pgx.Connect(ctx, l.connString)
		if err != nil {
			slog.Error("LISTEN reconnect failed", "error", err, "backoff", backoff)
			backoff = min(backoff*2, 30*time.Second)
			continue
		}
		l.conn = conn

		l.channelsMu.RLock()
		for ch := range l.channels {
			sanitized := pgx.Identifier{ch}.Sanitize()
			if _, err := conn.Exec(ctx, "LISTEN "+sanitized); err != nil {
				slog.Error("Re-LISTEN failed", "channel", ch, "error", err)
			}
		}
		l.channelsMu.RUnlock()

		slog.Info("NotifyListener reconnected")
		return
	}
}

// Stop signals the receive loop to exit, waits for it, then closes the
// connection. Prevents a race between WaitForNotification and Close.
func (l *NotifyListener) Stop(ctx context.Context) {
	l.running.Store(false)

	if l.cancelLoop != nil {
		l.cancelLoop()
	}
	if l.loopDone != nil {
		<-l.loopDone
	}

	l.connMu.Lock()
	defer l.connMu.Unlock()
	if l.conn != nil {
		_ = l.conn.Close(ctx)
		l.conn = nil
	}
}
