package router

import (
	"context"
	"crypto/tls"
	stderrors "errors"
	"net"
	"sync"
	"time"

	"github.com/go-routeros/routeros/v3"

	sharedConfig "github.com/lpsaring/lpsaring/internal/shared/config"
	"github.com/lpsaring/lpsaring/internal/shared/errors"
	"github.com/lpsaring/lpsaring/internal/shared/logger"
)

// healthProbe is run against a slot before handing it out. It is the
// cheapest read-only command RouterOS offers.
var healthProbe = []string{"/system/identity/print"}

type poolConn struct {
	mu  sync.Mutex
	cli *routeros.Client
	raw net.Conn
}

// Pool keeps a fixed set of authenticated RouterOS connections and hands
// them out round-robin. Every acquisition health-probes the slot and
// recreates it at most once before counting a breaker failure.
type Pool struct {
	cfg     *sharedConfig.MikrotikConfig
	log     logger.Interface
	breaker *Breaker
	slots   []*poolConn
	next    uint64
	nextMu  sync.Mutex
}

func NewPool(cfg *sharedConfig.MikrotikConfig, breaker *Breaker, log logger.Interface) *Pool {
	size := cfg.PoolSize
	if size <= 0 {
		size = 2
	}
	slots := make([]*poolConn, size)
	for i := range slots {
		slots[i] = &poolConn{}
	}
	return &Pool{
		cfg:     cfg,
		log:     log.Named("router.pool"),
		breaker: breaker,
		slots:   slots,
	}
}

// Acquire returns a healthy connection and a release func. The slot stays
// locked until release is called, so commands on it never interleave.
func (p *Pool) Acquire(ctx context.Context) (*poolConn, func(), error) {
	if err := p.breaker.Allow(); err != nil {
		return nil, nil, errors.NewTransientRouter("router unavailable", err)
	}

	slot := p.pick()
	slot.mu.Lock()

	if err := p.ensureHealthy(ctx, slot); err != nil {
		slot.mu.Unlock()
		p.breaker.RecordFailure()
		return nil, nil, errors.NewTransientRouter("router connection failed", err)
	}

	p.breaker.RecordSuccess()
	return slot, func() { slot.mu.Unlock() }, nil
}

func (p *Pool) pick() *poolConn {
	p.nextMu.Lock()
	idx := p.next % uint64(len(p.slots))
	p.next++
	p.nextMu.Unlock()
	return p.slots[idx]
}

// ensureHealthy probes the slot and rebuilds it at most once. Callers hold
// slot.mu.
func (p *Pool) ensureHealthy(ctx context.Context, slot *poolConn) error {
	if slot.cli != nil {
		if err := p.probe(ctx, slot); err == nil {
			return nil
		}
		p.log.Debugw("router connection failed probe, recreating", "addr", p.cfg.GetAddr())
		slot.close()
	}

	if err := p.dial(ctx, slot); err != nil {
		return err
	}
	if err := p.probe(ctx, slot); err != nil {
		slot.close()
		return err
	}
	return nil
}

func (p *Pool) dial(ctx context.Context, slot *poolConn) error {
	dialer := &net.Dialer{Timeout: p.cfg.ConnectTimeout()}
	conn, err := dialer.DialContext(ctx, "tcp", p.cfg.GetAddr())
	if err != nil {
		return err
	}

	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetKeepAlive(true)
		_ = tc.SetKeepAlivePeriod(30 * time.Second)
	}

	if p.cfg.UseSSL {
		tlsConn := tls.Client(conn, &tls.Config{ServerName: p.cfg.Host})
		_ = tlsConn.SetDeadline(time.Now().Add(p.cfg.ConnectTimeout()))
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			_ = conn.Close()
			return err
		}
		_ = tlsConn.SetDeadline(time.Time{})
		conn = tlsConn
	}

	cli, err := routeros.NewClient(conn)
	if err != nil {
		_ = conn.Close()
		return err
	}

	_ = conn.SetDeadline(time.Now().Add(p.cfg.ReadTimeout()))
	if err := cli.Login(p.cfg.Username, p.cfg.Password); err != nil {
		cli.Close()
		return err
	}
	_ = conn.SetDeadline(time.Time{})

	slot.cli = cli
	slot.raw = conn
	return nil
}

func (p *Pool) probe(ctx context.Context, slot *poolConn) error {
	_, err := slot.runLocked(ctx, p.cfg.ReadTimeout(), healthProbe)
	return err
}

// Run executes one sentence on a pooled connection. Transient failures drop
// the slot's connection and count against the breaker; router-side traps do
// not.
func (p *Pool) Run(ctx context.Context, sentence []string) (*routeros.Reply, error) {
	slot, release, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	reply, err := slot.runLocked(ctx, p.cfg.ReadTimeout(), sentence)
	if err != nil {
		if isDeviceError(err) {
			return nil, errors.NewRouterSemantic("router rejected command", err)
		}
		slot.close()
		p.breaker.RecordFailure()
		return nil, errors.NewTransientRouter("router command failed", err)
	}
	return reply, nil
}

// Close tears down every pooled connection.
func (p *Pool) Close() {
	for _, slot := range p.slots {
		slot.mu.Lock()
		slot.close()
		slot.mu.Unlock()
	}
}

// runLocked assumes the slot mutex is held. The read deadline is the
// earlier of the configured timeout and the context deadline.
func (c *poolConn) runLocked(ctx context.Context, timeout time.Duration, sentence []string) (*routeros.Reply, error) {
	if c.cli == nil {
		return nil, net.ErrClosed
	}
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.raw.SetDeadline(deadline)
	defer func() { _ = c.raw.SetDeadline(time.Time{}) }()

	return c.cli.RunArgs(sentence)
}

func (c *poolConn) close() {
	if c.cli != nil {
		c.cli.Close()
		c.cli = nil
		c.raw = nil
	}
}

func isDeviceError(err error) bool {
	var devErr *routeros.DeviceError
	return stderrors.As(err, &devErr)
}
