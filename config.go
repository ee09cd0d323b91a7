package namequery

import (
	"net/netip"
	"time"

	"darvaza.org/slog"
	"darvaza.org/slog/handlers/discard"

	"darvaza.org/namequery/pkg/dnsclient"
	"darvaza.org/namequery/pkg/gencache"
	"darvaza.org/namequery/pkg/nbt"
)

const (
	// DefaultBcastTimeout bounds each broadcast name query attempt.
	DefaultBcastTimeout = 250 * time.Millisecond
	// DefaultUnicastTimeout bounds each unicast name query
	// attempt, one WINS server typically.
	DefaultUnicastTimeout = 2 * time.Second
	// DefaultDNSTimeout is the shared deadline of a batched DNS
	// lookup.
	DefaultDNSTimeout = 10 * time.Second
	// DefaultCacheTTL is how long positive resolution results stay
	// in the name cache.
	DefaultCacheTTL = 660 * time.Second

	// DeadServerTimeout is how long an unresponsive WINS server is
	// skipped before being retried.
	DeadServerTimeout = 600 * time.Second
)

// DefaultResolveOrder is used when the configuration names no
// resolution methods.
var DefaultResolveOrder = []Method{
	MethodLMHosts, MethodWINS, MethodHost, MethodBcast,
}

// Config assembles a [Resolver]. The zero value is usable after
// SetDefaults.
type Config struct {
	// Logger receives structured output. Optional.
	Logger slog.Logger

	// ResolveOrder lists the methods to try, in order.
	ResolveOrder []Method

	// Workgroup is our own NetBIOS domain.
	Workgroup string
	// Realm is our own Kerberos realm.
	Realm string

	// PasswordServers is the statically configured domain
	// controller list. The entry "*" expands to automatic
	// discovery. Entries may carry a ":port" suffix.
	PasswordServers []string

	// WINSServers groups the configured WINS servers by tag.
	// Servers within a tag are alternates tried in order; tags are
	// queried in parallel.
	WINSServers map[string][]netip.Addr

	// SecurityADS makes domain controller lookups try SRV
	// discovery before the regular resolution order.
	SecurityADS bool

	// DisableNetBIOS turns off broadcast and master browser
	// lookups.
	DisableNetBIOS bool

	// BcastTimeout overrides [DefaultBcastTimeout].
	BcastTimeout time.Duration
	// UnicastTimeout overrides [DefaultUnicastTimeout].
	UnicastTimeout time.Duration
	// DNSTimeout overrides [DefaultDNSTimeout].
	DNSTimeout time.Duration
	// CacheTTL overrides [DefaultCacheTTL].
	CacheTTL time.Duration

	// Codec translates NetBIOS queries to and from wire bytes.
	// Required for the wins and bcast methods.
	Codec nbt.Codec
	// Side is an optional feed of packets captured by a
	// cooperating local daemon.
	Side nbt.SideChannel
	// DNS performs SRV, A and AAAA lookups. Required for the
	// host, ads and kdc methods.
	DNS dnsclient.Client
	// Cache is the TTL store backing the name, affinity and
	// negative connection caches. Defaults to an in-memory store.
	Cache gencache.Store
	// Static answers lmhosts lookups. Optional.
	Static StaticTable
	// Env enumerates local interfaces. Defaults to [SysEnv].
	Env NetEnv
}

// SetDefaults fills unset fields.
func (cfg *Config) SetDefaults() error {
	if cfg.Logger == nil {
		cfg.Logger = discard.New()
	}
	if len(cfg.ResolveOrder) == 0 {
		cfg.ResolveOrder = DefaultResolveOrder
	}
	if cfg.BcastTimeout <= 0 {
		cfg.BcastTimeout = DefaultBcastTimeout
	}
	if cfg.UnicastTimeout <= 0 {
		cfg.UnicastTimeout = DefaultUnicastTimeout
	}
	if cfg.DNSTimeout <= 0 {
		cfg.DNSTimeout = DefaultDNSTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.Cache == nil {
		cfg.Cache = gencache.NewMemStore(gencache.DefaultSize)
	}
	if cfg.Env == nil {
		cfg.Env = SysEnv{}
	}
	return nil
}
