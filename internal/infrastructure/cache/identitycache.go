package cache

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lpsaring/lpsaring/internal/infrastructure/metrics"
	sharedConfig "github.com/lpsaring/lpsaring/internal/shared/config"
	"github.com/lpsaring/lpsaring/internal/shared/errors"
	"github.com/lpsaring/lpsaring/internal/shared/logger"
)

// Lookup sources reported to callers.
const (
	SourceGrace      = "Grace Cache"
	SourceGraceStale = "Grace Cache (stale)"
	SourceShared     = "Redis Cache"
	SourceHost       = "Hotspot Host"
	SourceLease      = "DHCP Lease"
	SourceArp        = "ARP Table"
	SourceNotFound   = "Not found"
)

const macByIPPrefix = "mtc:mbi:"

// MACResolver is the router-side lookup chain the cache falls back to on a
// miss.
type MACResolver interface {
	HostMACByIP(ctx context.Context, ip string) (string, error)
	LeaseMACByIP(ctx context.Context, ip string) (string, error)
	ArpMACByIP(ctx context.Context, ip string) (string, error)
}

type graceEntry struct {
	mac      string
	storedAt time.Time
	lastUsed time.Time
}

type cachedMAC struct {
	MAC    string `json:"mac"`
	Source string `json:"source"`
}

// IdentityCache resolves IP to MAC through three layers: an in-process
// grace map, the shared cache, and finally the router itself. Positive
// results flow back down through all layers.
type IdentityCache struct {
	cfg      *sharedConfig.IdentityCacheConfig
	resolver MACResolver
	kv       KV
	metrics  *metrics.Metrics
	log      logger.Interface

	parallel    bool
	readTimeout time.Duration

	mu     sync.Mutex
	grace  map[string]*graceEntry
	forces map[string][]time.Time
	now    func() time.Time
}

func NewIdentityCache(
	cfg *sharedConfig.IdentityCacheConfig,
	mikrotikCfg *sharedConfig.MikrotikConfig,
	resolver MACResolver,
	kv KV,
	m *metrics.Metrics,
	log logger.Interface,
) *IdentityCache {
	return &IdentityCache{
		cfg:         cfg,
		resolver:    resolver,
		kv:          kv,
		metrics:     m,
		log:         log.Named("identity_cache"),
		parallel:    mikrotikCfg.LookupParallel || mikrotikCfg.AsyncMode,
		readTimeout: mikrotikCfg.ReadTimeout(),
		grace:       make(map[string]*graceEntry),
		forces:      make(map[string][]time.Time),
		now:         time.Now,
	}
}

// FindMACByIP resolves the MAC behind an IP. It returns the MAC (empty when
// unresolved), the layer that answered, and an error only for invalid
// input; resolution misses are soft and reported through the source string.
func (c *IdentityCache) FindMACByIP(ctx context.Context, ip string, forceRefresh bool) (string, string, error) {
	if ip == "" {
		return "", SourceNotFound, errors.NewValidation("empty ip")
	}

	c.metrics.MacLookupTotal.Inc()
	start := c.now()
	defer func() {
		c.metrics.MacLookupLatency.Observe(float64(c.now().Sub(start).Milliseconds()))
	}()

	if forceRefresh {
		c.recordForce(ip)
	} else {
		if mac, ok := c.graceLookup(ip); ok {
			c.metrics.MacLookupGraceHits.Inc()
			return mac, SourceGrace, nil
		}
		if mac, source, ok := c.sharedLookup(ctx, ip); ok {
			if mac != "" {
				c.storeGrace(ip, mac)
			}
			c.metrics.MacLookupCacheHits.Inc()
			return mac, source, nil
		}
	}

	mac, source, err := c.routerLookup(ctx, ip)
	if err != nil {
		// Router unreachable; a grace entry within its window is stale but
		// still usable.
		if mac, ok := c.graceLookup(ip); ok {
			c.log.Warnw("router unreachable, serving stale grace entry", "ip", ip)
			c.metrics.MacLookupGraceHits.Inc()
			return mac, SourceGraceStale, nil
		}
		// A short negative entry keeps the outage from funneling every
		// request back into the failing router chain.
		c.storeShared(ctx, ip, "", SourceNotFound, time.Duration(c.cfg.NegativeTTLSeconds)*time.Second)
		c.metrics.MacLookupFail.Inc()
		return "", SourceNotFound, nil
	}

	if mac == "" {
		c.storeShared(ctx, ip, "", SourceNotFound, time.Duration(c.cfg.NegativeTTLSeconds)*time.Second)
		c.metrics.MacLookupFail.Inc()
		return "", SourceNotFound, nil
	}

	ttl := time.Duration(c.cfg.LookupCacheTTLSeconds) * time.Second
	if source == SourceArp {
		ttl = time.Duration(c.cfg.ArpTTLSeconds) * time.Second
	}
	c.storeShared(ctx, ip, mac, source, ttl)
	c.storeGrace(ip, mac)
	return mac, source, nil
}

// WarmIPs force-refreshes a batch of IPs to keep router tables and caches
// populated. Failures are logged and skipped.
func (c *IdentityCache) WarmIPs(ctx context.Context, ips []string) {
	for _, ip := range ips {
		if ctx.Err() != nil {
			return
		}
		if _, _, err := c.FindMACByIP(ctx, ip, true); err != nil {
			c.log.Debugw("warm lookup failed", "ip", ip, "error", err)
		}
	}
}

// GraceSize returns the number of live grace entries.
func (c *IdentityCache) GraceSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.grace)
}

func (c *IdentityCache) graceLookup(ip string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.grace[ip]
	if !ok {
		return "", false
	}
	if c.now().Sub(entry.storedAt) > c.effectiveGraceLocked(ip) {
		delete(c.grace, ip)
		c.metrics.MacGraceCacheSize.Set(float64(len(c.grace)))
		return "", false
	}
	entry.lastUsed = c.now()
	return entry.mac, true
}

func (c *IdentityCache) storeGrace(ip, mac string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.grace[ip] = &graceEntry{mac: mac, storedAt: c.now(), lastUsed: c.now()}
	c.evictLocked()
	c.metrics.MacGraceCacheSize.Set(float64(len(c.grace)))
}

// evictLocked drops the least-recently-used 10% when over the cap.
func (c *IdentityCache) evictLocked() {
	max := c.cfg.GraceMaxEntries
	if max <= 0 || len(c.grace) <= max {
		return
	}

	type aged struct {
		ip       string
		lastUsed time.Time
	}
	entries := make([]aged, 0, len(c.grace))
	for ip, e := range c.grace {
		entries = append(entries, aged{ip: ip, lastUsed: e.lastUsed})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].lastUsed.Before(entries[j].lastUsed)
	})

	drop := len(c.grace) / 10
	if drop < 1 {
		drop = 1
	}
	for _, e := range entries[:drop] {
		delete(c.grace, e.ip)
	}
}

// recordForce logs a force-refresh event; repeated forcing within the
// window shrinks the effective grace for that IP.
func (c *IdentityCache) recordForce(ip string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	window := time.Duration(c.cfg.GraceForceWindowSecs) * time.Second
	cutoff := c.now().Add(-window)

	events := c.forces[ip]
	kept := events[:0]
	for _, t := range events {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	c.forces[ip] = append(kept, c.now())
}

func (c *IdentityCache) effectiveGraceLocked(ip string) time.Duration {
	grace := time.Duration(c.cfg.PositiveGraceSeconds) * time.Second
	min := time.Duration(c.cfg.GraceMinSeconds) * time.Second
	decay := time.Duration(c.cfg.GraceAdaptDecaySeconds) * time.Second

	window := time.Duration(c.cfg.GraceForceWindowSecs) * time.Second
	cutoff := c.now().Add(-window)
	for _, t := range c.forces[ip] {
		if t.After(cutoff) {
			grace -= decay
		}
	}
	if grace < min {
		grace = min
	}
	return grace
}

// sharedLookup consults the shared cache. The third return is false on a
// miss or when the cache is unreachable; unreachable degrades silently to
// the router path.
func (c *IdentityCache) sharedLookup(ctx context.Context, ip string) (string, string, bool) {
	raw, err := c.kv.Get(ctx, macByIPPrefix+ip)
	if err != nil {
		if err != ErrCacheMiss {
			c.log.Warnw("shared cache unavailable, skipping layer", "error", err)
		}
		return "", "", false
	}

	var payload cachedMAC
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return "", "", false
	}
	if payload.MAC == "" {
		return "", SourceNotFound + " (cached)", true
	}
	return payload.MAC, SourceShared, true
}

func (c *IdentityCache) storeShared(ctx context.Context, ip, mac, source string, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	raw, err := json.Marshal(cachedMAC{MAC: mac, Source: source})
	if err != nil {
		return
	}
	if err := c.kv.Set(ctx, macByIPPrefix+ip, string(raw), ttl); err != nil {
		c.log.Warnw("shared cache write failed", "ip", ip, "error", err)
	}
}

// routerLookup walks host, lease and arp tables. A nil error with an empty
// MAC means the router answered but nothing matched; a non-nil error means
// the router could not be asked.
func (c *IdentityCache) routerLookup(ctx context.Context, ip string) (string, string, error) {
	if c.parallel {
		return c.routerLookupParallel(ctx, ip)
	}

	type step struct {
		source string
		fn     func(context.Context, string) (string, error)
	}
	steps := []step{
		{SourceHost, c.resolver.HostMACByIP},
		{SourceLease, c.resolver.LeaseMACByIP},
		{SourceArp, c.resolver.ArpMACByIP},
	}

	for _, s := range steps {
		mac, err := s.fn(ctx, ip)
		if err == nil {
			return mac, s.source, nil
		}
		if errors.IsKind(err, errors.KindTransientRouter) {
			return "", "", err
		}
	}
	return "", SourceNotFound, nil
}

// routerLookupParallel races all three lookups under one combined deadline.
// The first positive answer wins.
func (c *IdentityCache) routerLookupParallel(ctx context.Context, ip string) (string, string, error) {
	raceCtx, cancel := context.WithTimeout(ctx, c.readTimeout)
	defer cancel()

	type answer struct {
		mac    string
		source string
	}
	results := make(chan answer, 3)

	g, gCtx := errgroup.WithContext(raceCtx)
	lookups := map[string]func(context.Context, string) (string, error){
		SourceHost:  c.resolver.HostMACByIP,
		SourceLease: c.resolver.LeaseMACByIP,
		SourceArp:   c.resolver.ArpMACByIP,
	}
	for source, fn := range lookups {
		g.Go(func() error {
			mac, err := fn(gCtx, ip)
			if err != nil {
				if errors.IsKind(err, errors.KindTransientRouter) {
					return err
				}
				return nil
			}
			results <- answer{mac: mac, source: source}
			return nil
		})
	}

	waitErr := g.Wait()
	close(results)

	for a := range results {
		if a.mac != "" {
			return a.mac, a.source, nil
		}
	}
	if waitErr != nil {
		return "", "", waitErr
	}
	return "", SourceNotFound, nil
}
