package controller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-fan/internal/fan"
	"github.com/nerrad567/gray-logic-fan/internal/miio"
)

const (
	// DefaultPollingInterval is used when Options.PollingInterval is zero.
	DefaultPollingInterval = 5 * time.Second

	// reconnectFactor scales the polling interval into the delay between
	// failed connection attempts.
	reconnectFactor = 6
)

// Logger is the logging interface used by the controller.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Options holds configuration for creating a controller.
type Options struct {
	// Address is the fan host, with an optional port.
	Address string

	// Token is the 32 character hex device token.
	Token string

	// DeviceID is the numeric device id, with or without the "miio:" prefix.
	// Required by MIoT models when the transport does not report one.
	DeviceID string

	// Model is the cached model. When set the device is created before the
	// first connection.
	Model string

	// Name is the display name used in logs.
	Name string

	// PollingInterval is the time between property polls (default 5s).
	PollingInterval time.Duration

	// RefreshDelay is passed to direct-method devices. Zero uses the
	// transport default.
	RefreshDelay time.Duration

	// Dialer opens transports. Default: miio.UDPDialer.
	Dialer miio.Dialer

	// Logger is optional.
	Logger Logger
}

// Controller owns the connection to one fan: it discovers the model,
// creates the Device, polls it and reconnects when the fan goes away.
//
// Each controller runs a single loop goroutine. A poll is never overlapped
// by the next tick, and the ticker is stopped before a reconnect starts.
//
// Thread Safety: All methods are safe for concurrent use.
type Controller struct {
	opts     Options
	dialer   miio.Dialer
	interval time.Duration
	logger   Logger

	listenersMu sync.RWMutex
	listeners   []Listener

	mu     sync.RWMutex
	device *fan.Device
	cancel context.CancelFunc
	done   chan struct{}

	stats counters
}

// New creates a controller. Call Start to begin connecting.
//
// Returns:
//   - *Controller: Ready to start
//   - error: ErrAddressRequired or ErrTokenRequired
func New(opts Options) (*Controller, error) {
	if opts.Address == "" {
		return nil, ErrAddressRequired
	}
	if opts.Token == "" {
		return nil, ErrTokenRequired
	}

	c := &Controller{
		opts:     opts,
		dialer:   opts.Dialer,
		interval: opts.PollingInterval,
	}
	if c.interval <= 0 {
		c.interval = DefaultPollingInterval
	}
	if c.dialer == nil {
		var ml miio.Logger
		if opts.Logger != nil {
			ml = opts.Logger
		}
		c.dialer = miio.UDPDialer{Logger: ml}
	}
	c.logger = nopLogger{}
	if opts.Logger != nil {
		c.logger = namedLogger{next: opts.Logger, name: opts.Name}
	}
	return c, nil
}

// AddListener registers l for all future events.
func (c *Controller) AddListener(l Listener) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	c.listeners = append(c.listeners, l)
}

// Start creates the device from the cached model, if any, and launches the
// connect and poll loop. It returns immediately.
//
// Parameters:
//   - ctx: Cancelling ctx stops the loop, as does Stop
//
// Returns:
//   - error: ErrAlreadyStarted when called twice
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	if c.opts.Model != "" {
		c.logger.Debug("cached fan model found, creating fan device", "model", c.opts.Model)
		d, err := c.newDevice(nil, c.opts.Model)
		if err == nil {
			c.mu.Lock()
			c.device = d
			c.mu.Unlock()
			c.emitDeviceReady(d)
		}
	} else {
		c.logger.Debug("fan model unknown, starting discovery")
	}

	go c.run(runCtx, done)
	return nil
}

// Stop cancels the loop, waits for it to exit and destroys the transport.
// It is safe to call more than once.
func (c *Controller) Stop() {
	c.mu.RLock()
	cancel, done := c.cancel, c.done
	c.mu.RUnlock()
	if cancel == nil {
		return
	}

	cancel()
	<-done

	if d := c.Device(); d != nil {
		d.Detach()
	}
	c.stats.connected.Store(false)
	c.logger.Info("fan controller stopped")
}

// Device returns the fan device, or nil before the model is known.
func (c *Controller) Device() *fan.Device {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.device
}

// Connected reports whether a transport is currently attached.
func (c *Controller) Connected() bool {
	return c.stats.connected.Load()
}

// Stats returns a copy of the controller counters.
func (c *Controller) Stats() Stats {
	return c.stats.snapshot()
}

// Name returns the configured display name.
func (c *Controller) Name() string { return c.opts.Name }

func (c *Controller) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		d := c.connect(ctx)
		if d == nil {
			return
		}
		c.poll(ctx, d)
		if ctx.Err() != nil {
			return
		}
	}
}

// connect dials until it succeeds or ctx is done. It returns nil only when
// ctx is done.
func (c *Controller) connect(ctx context.Context) *fan.Device {
	delay := reconnectFactor * c.interval
	for {
		c.stats.connectAttempts.Add(1)
		t, err := c.dialer.Dial(ctx, c.opts.Address, c.opts.Token)
		if err == nil {
			var d *fan.Device
			d, err = c.bind(ctx, t)
			if err == nil {
				return d
			}
			if derr := t.Destroy(); derr != nil {
				c.logger.Debug("destroying transport failed", "error", derr)
			}
		}
		if ctx.Err() != nil {
			return nil
		}

		c.logger.Debug("could not connect to the fan, retrying", "error", err, "retry_in", delay)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// bind creates or reuses the device for t and attaches it. A live model that
// maps to a different profile family than the cached one replaces the device.
func (c *Controller) bind(ctx context.Context, t miio.Transport) (*fan.Device, error) {
	model := t.Model()
	c.logger.Info("connected to fan", "model", model)

	c.mu.Lock()
	d := c.device
	created := false
	if d == nil || (model != "" && fan.ProfileFamily(model) != d.Family()) {
		if d != nil {
			c.logger.Warn("fan model differs from cached model, recreating device",
				"cached_model", d.Model(), "model", model)
			d.Detach()
		}
		nd, err := c.newDevice(t, c.opts.Model)
		if err != nil {
			c.mu.Unlock()
			return nil, err
		}
		d = nd
		c.device = d
		created = true
	}
	c.mu.Unlock()

	if err := d.Attach(ctx, t); err != nil {
		return nil, fmt.Errorf("attaching transport: %w", err)
	}

	c.stats.connects.Add(1)
	c.stats.connected.Store(true)
	if created {
		c.emitDeviceReady(d)
	}
	c.emitConnected(d)
	return d, nil
}

// poll refreshes d on every tick until a poll fails or ctx is done.
func (c *Controller) poll(ctx context.Context, d *fan.Device) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		c.stats.polls.Add(1)
		snap, err := d.Refresh(ctx)
		if err == nil {
			c.emitPropertiesUpdated(snap)
			continue
		}
		if ctx.Err() != nil {
			return
		}

		c.stats.pollFailures.Add(1)
		ticker.Stop()
		c.logger.Debug("poll failed, no response from fan, stopping polling", "error", err)
		d.Detach()
		c.stats.connected.Store(false)
		c.stats.disconnects.Add(1)
		c.emitDisconnected()
		c.logger.Debug("trying to reconnect")
		return
	}
}

func (c *Controller) newDevice(t miio.Transport, model string) (*fan.Device, error) {
	opts := []fan.Option{fan.WithRefreshDelay(c.opts.RefreshDelay)}
	if c.opts.Logger != nil {
		opts = append(opts, fan.WithLogger(c.opts.Logger))
	}
	d, err := fan.NewDevice(t, model, c.opts.DeviceID, c.opts.Name, opts...)
	if err != nil {
		c.logger.Error("could not create fan device", "error", err)
		return nil, err
	}
	d.SetUpdateHandler(c.emitPropertiesUpdated)
	c.logger.Info("fan device created", "model", d.Model(), "family", d.Family())
	return d, nil
}

func (c *Controller) snapshotListeners() []Listener {
	c.listenersMu.RLock()
	defer c.listenersMu.RUnlock()
	return append([]Listener(nil), c.listeners...)
}

func (c *Controller) emitDeviceReady(d *fan.Device) {
	for _, l := range c.snapshotListeners() {
		l.DeviceReady(d)
	}
}

func (c *Controller) emitConnected(d *fan.Device) {
	for _, l := range c.snapshotListeners() {
		l.Connected(d)
	}
}

func (c *Controller) emitDisconnected() {
	for _, l := range c.snapshotListeners() {
		l.Disconnected()
	}
}

func (c *Controller) emitPropertiesUpdated(snap fan.Snapshot) {
	for _, l := range c.snapshotListeners() {
		l.PropertiesUpdated(snap)
	}
}

// namedLogger tags every line with the fan name.
type namedLogger struct {
	next Logger
	name string
}

func (l namedLogger) Debug(msg string, args ...any) { l.next.Debug(msg, append(args, "device", l.name)...) }
func (l namedLogger) Info(msg string, args ...any)  { l.next.Info(msg, append(args, "device", l.name)...) }
func (l namedLogger) Warn(msg string, args ...any)  { l.next.Warn(msg, append(args, "device", l.name)...) }
func (l namedLogger) Error(msg string, args ...any) { l.next.Error(msg, append(args, "device", l.name)...) }

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
