// Package namequery resolves NetBIOS, DNS and domain names into
// addresses by trying a configured chain of resolution methods:
// static tables, WINS servers, the DNS, SRV-based domain controller
// discovery, and subnet broadcasts.
package namequery

import (
	"sync"
	"time"

	"darvaza.org/cache/x/simplelru"
	"darvaza.org/slog"
	"golang.org/x/sync/singleflight"

	"darvaza.org/namequery/pkg/nbt"
)

// Resolver is the entry point. Create it via [New]; the zero value is
// not usable.
type Resolver struct {
	cfg Config
	log slog.Logger

	tr *nbt.Transaction
	sf singleflight.Group

	mu   sync.Mutex
	dead *simplelru.LRU[string, time.Time]
}

// New assembles a Resolver from cfg, filling defaults.
func New(cfg Config) (*Resolver, error) {
	if err := cfg.SetDefaults(); err != nil {
		return nil, err
	}

	r := &Resolver{
		cfg: cfg,
		log: cfg.Logger,
		tr: &nbt.Transaction{
			Side: cfg.Side,
			Log:  cfg.Logger,
		},
	}

	r.dead = simplelru.NewLRU(deadSetSize, r.onDeadAdd, r.onDeadEvict)
	return r, nil
}

const deadSetSize = 64

func (r *Resolver) onDeadAdd(key string, _ time.Time, _ int, expire time.Time) {
	r.log.Debug().
		WithField("server", key).
		WithField("until", expire.UTC().Format(time.RFC3339)).
		Print("marking WINS server dead")
}

func (r *Resolver) onDeadEvict(key string, _ time.Time, _ int) {
	r.log.Debug().
		WithField("server", key).
		Print("WINS server no longer dead")
}

// Workgroup returns the configured NetBIOS domain.
func (r *Resolver) Workgroup() string { return r.cfg.Workgroup }

// Realm returns the configured Kerberos realm.
func (r *Resolver) Realm() string { return r.cfg.Realm }
