package namequery

// Server affinity: remember the last domain controller we had a
// successful conversation with, and prefer it next time.

import (
	"fmt"
	"strings"
	"time"
)

const (
	safKeyFmt     = "SAF/DOMAIN/%s"
	safJoinKeyFmt = "SAFJOIN/DOMAIN/%s"

	// SAFTTL is the lifetime of a general affinity entry.
	SAFTTL = 900 * time.Second
	// SAFJoinTTL is the lifetime of a join affinity entry. Join
	// entries are checked first and live longer.
	SAFJoinTTL = 3600 * time.Second
)

func safKey(format, domain string) string {
	return fmt.Sprintf(format, strings.ToUpper(domain))
}

// SAFStore records server as the preferred domain controller for
// domain.
func (r *Resolver) SAFStore(domain, server string) bool {
	return r.safSet(safKeyFmt, domain, server, SAFTTL)
}

// SAFJoinStore records server as the controller used to join domain.
func (r *Resolver) SAFJoinStore(domain, server string) bool {
	return r.safSet(safJoinKeyFmt, domain, server, SAFJoinTTL)
}

func (r *Resolver) safSet(format, domain, server string, ttl time.Duration) bool {
	if domain == "" || server == "" {
		r.log.Warn().
			WithField("domain", domain).
			Print("refusing to store empty affinity entry")
		return false
	}

	r.cfg.Cache.Set(safKey(format, domain), server, time.Now().Add(ttl))

	r.log.Debug().
		WithField("domain", domain).
		WithField("server", server).
		Print("stored server affinity")
	return true
}

// SAFFetch returns the preferred server for domain, join entries
// first, or "" when none is cached.
func (r *Resolver) SAFFetch(domain string) string {
	if domain == "" {
		return ""
	}

	if server, _, ok := r.cfg.Cache.Get(safKey(safJoinKeyFmt, domain)); ok {
		return server
	}
	if server, _, ok := r.cfg.Cache.Get(safKey(safKeyFmt, domain)); ok {
		return server
	}
	return ""
}

// SAFDelete drops both affinity entries for domain.
func (r *Resolver) SAFDelete(domain string) {
	r.cfg.Cache.Delete(safKey(safJoinKeyFmt, domain))
	r.cfg.Cache.Delete(safKey(safKeyFmt, domain))
}
