package miio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shimmeringbee/retry"
)

// Transport constants.
const (
	// DefaultPort is the miIO UDP port.
	DefaultPort = 54321

	// defaultTimeout is the per-attempt response timeout.
	defaultTimeout = 2 * time.Second

	// defaultRetries is the number of retransmits per request.
	defaultRetries = 2

	// handshakeAttempts bounds hello retransmits during Connect.
	handshakeAttempts = 3
)

// Logger is the optional logging interface used by the transport.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Config holds the parameters for Connect.
type Config struct {
	// Address is the device host, with an optional port (default 54321).
	Address string

	// Token is the 32 character hex device token.
	Token string

	// Timeout is the per-attempt response timeout (default 2s).
	Timeout time.Duration

	// Retries is the number of retransmits per request (default 2).
	Retries int

	// Logger receives debug output. Optional.
	Logger Logger
}

// Client is an encrypted miIO session with one device.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Requests are serialised on the socket; a slow device delays other callers.
type Client struct {
	conn    *net.UDPConn
	crypter *crypter
	timeout time.Duration
	retries int
	logger  Logger

	// mu serialises socket round trips and guards the session stamp.
	mu       sync.Mutex
	deviceID uint32
	stamp    uint32
	stampAt  time.Time

	nextID atomic.Uint32
	info   Info

	// Direct-method property snapshot.
	propMu   sync.RWMutex
	declared []string
	snapshot map[string]any

	closeOnce sync.Once
	closed    atomic.Bool
}

type request struct {
	ID     uint32 `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params"`
}

type response struct {
	ID     uint32          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// Connect opens a session with a device.
//
// It performs the following:
//  1. Validates the token and resolves the address
//  2. Sends the hello handshake (retried) to learn the device id and stamp
//  3. Reads miIO.info to learn the hardware model
//
// Parameters:
//   - ctx: Context for cancellation of the handshake
//   - cfg: Device address, token and timeouts
//
// Returns:
//   - *Client: Connected session
//   - error: ErrInvalidToken, ErrHandshakeFailed or a wrapped call error
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	token, err := parseToken(cfg.Token)
	if err != nil {
		return nil, err
	}

	addr, err := resolveAddress(cfg.Address)
	if err != nil {
		return nil, err
	}

	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
	}

	c := &Client{
		conn:     conn,
		crypter:  newCrypter(token),
		timeout:  cfg.Timeout,
		retries:  cfg.Retries,
		logger:   cfg.Logger,
		snapshot: make(map[string]any),
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.retries <= 0 {
		c.retries = defaultRetries
	}

	if err := retry.Retry(ctx, c.timeout, handshakeAttempts, c.handshake); err != nil {
		conn.Close() //nolint:errcheck // best effort on failed connect
		return nil, fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
	}

	info, err := c.Info(ctx)
	if err != nil {
		conn.Close() //nolint:errcheck // best effort on failed connect
		return nil, fmt.Errorf("reading device info: %w", err)
	}
	c.info = info

	c.logDebug("miio session established",
		"address", addr.String(),
		"device_id", c.DeviceID(),
		"model", info.Model,
	)
	return c, nil
}

// resolveAddress accepts "host" or "host:port".
func resolveAddress(address string) (*net.UDPAddr, error) {
	if address == "" {
		return nil, fmt.Errorf("%w: address is required", ErrHandshakeFailed)
	}
	if _, _, err := net.SplitHostPort(address); err != nil {
		address = net.JoinHostPort(address, strconv.Itoa(DefaultPort))
	}
	addr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving %s: %w", ErrHandshakeFailed, address, err)
	}
	return addr, nil
}

// handshake sends the hello packet and records the device id and stamp.
func (c *Client) handshake(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetDeadline(c.deadline(ctx)); err != nil {
		return err
	}
	if _, err := c.conn.Write(helloPacket()); err != nil {
		return err
	}

	buf := make([]byte, maxPacketSize)
	for {
		n, err := c.conn.Read(buf)
		if err != nil {
			return readError(err)
		}
		h, err := parseHeader(buf[:n])
		if err != nil || int(h.length) != headerSize {
			continue
		}
		c.deviceID = h.deviceID
		c.stamp = h.stamp
		c.stampAt = time.Now()
		return nil
	}
}

// Call invokes a remote method.
//
// When opts.Refresh is set, the listed direct-method properties are re-read
// after opts.RefreshDelay once the call succeeds. If that refresh fails the
// result is still returned, together with a *RefreshError naming the
// properties that were not re-read.
//
// Parameters:
//   - ctx: Context for cancellation
//   - method: Remote method name (e.g. "set_power", "get_properties")
//   - params: JSON-encodable params (nil sends an empty list)
//   - opts: Refresh options
//
// Returns:
//   - json.RawMessage: The "result" member of the response
//   - error: ErrClosed, ErrTimeout, *RPCError, *RefreshError or a socket error
func (c *Client) Call(ctx context.Context, method string, params any, opts CallOptions) (json.RawMessage, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	if params == nil {
		params = []any{}
	}

	id := c.nextID.Add(1)
	payload, err := json.Marshal(request{ID: id, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("encoding %s request: %w", method, err)
	}

	result, err := c.roundTrip(ctx, id, payload)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", method, err)
	}

	if len(opts.Refresh) > 0 {
		if err := c.refreshAfter(ctx, opts); err != nil {
			return result, err
		}
	}
	return result, nil
}

// refreshAfter waits for the refresh delay and re-reads the given properties.
func (c *Client) refreshAfter(ctx context.Context, opts CallOptions) error {
	delay := opts.RefreshDelay
	if delay <= 0 {
		delay = DefaultRefreshDelay
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return &RefreshError{Missed: slices.Clone(opts.Refresh), Err: ctx.Err()}
	case <-timer.C:
	}

	loaded, err := c.loadProperties(ctx, opts.Refresh)
	if err != nil {
		c.logDebug("property refresh failed", "properties", opts.Refresh, "error", err)
		return &RefreshError{
			Refreshed: loaded,
			Missed:    slices.Clone(opts.Refresh[len(loaded):]),
			Err:       err,
		}
	}
	return nil
}

// roundTrip sends a request and waits for the response with the same id,
// retransmitting on timeout.
func (c *Client) roundTrip(ctx context.Context, id uint32, payload []byte) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	lastErr := ErrTimeout
	for attempt := 0; attempt <= c.retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pkt, err := c.crypter.seal(c.deviceID, c.currentStamp(), payload)
		if err != nil {
			return nil, err
		}
		if err := c.conn.SetDeadline(c.deadline(ctx)); err != nil {
			return nil, err
		}
		if _, err := c.conn.Write(pkt); err != nil {
			lastErr = err
			continue
		}

		result, err := c.awaitResponse(id)
		if err == nil {
			return result, nil
		}
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) {
			return nil, err
		}
		lastErr = err
		c.logDebug("miio request retry", "id", id, "attempt", attempt+1, "error", err)
	}
	return nil, lastErr
}

// awaitResponse reads datagrams until the response for id arrives.
// Stale responses to earlier, timed-out requests are dropped.
func (c *Client) awaitResponse(id uint32) (json.RawMessage, error) {
	buf := make([]byte, maxPacketSize)
	for {
		n, err := c.conn.Read(buf)
		if err != nil {
			return nil, readError(err)
		}

		_, body, err := c.crypter.open(buf[:n])
		if err != nil || body == nil {
			continue
		}

		var resp response
		if err := json.Unmarshal(bytes.TrimRight(body, "\x00"), &resp); err != nil {
			c.logDebug("dropping undecodable response", "error", err)
			continue
		}
		if resp.ID != id {
			continue
		}
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	}
}

// Info reads miIO.info from the device.
func (c *Client) Info(ctx context.Context) (Info, error) {
	var info Info
	raw, err := c.Call(ctx, "miIO.info", nil, CallOptions{})
	if err != nil {
		return info, err
	}
	if err := json.Unmarshal(raw, &info); err != nil {
		return info, fmt.Errorf("%w: %w", ErrUnexpectedResponse, err)
	}
	return info, nil
}

// Model returns the model reported by miIO.info during Connect.
func (c *Client) Model() string {
	return c.info.Model
}

// DeviceID returns the decimal device id from the handshake.
func (c *Client) DeviceID() string {
	return strconv.FormatUint(uint64(c.deviceID), 10)
}

// Destroy closes the socket. Later calls return ErrClosed.
func (c *Client) Destroy() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		err = c.conn.Close()
	})
	return err
}

// currentStamp advances the device stamp by the time since the handshake.
func (c *Client) currentStamp() uint32 {
	return c.stamp + uint32(time.Since(c.stampAt)/time.Second) //nolint:gosec // wraps like the device counter
}

// deadline is now+timeout, or the context deadline if sooner.
func (c *Client) deadline(ctx context.Context) time.Time {
	d := time.Now().Add(c.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(d) {
		return dl
	}
	return d
}

func readError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	if errors.Is(err, net.ErrClosed) {
		return ErrClosed
	}
	return err
}

func (c *Client) logDebug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}
