package namequery

// AD site affinity: once we learn which site we are in, sited SRV
// lookups can be scoped to nearby domain controllers.

import (
	"fmt"
	"strings"
	"time"
)

const siteKeyFmt = "AD_SITENAME/DOMAIN/%s"

func siteKey(realm string) string {
	return fmt.Sprintf(siteKeyFmt, strings.ToUpper(realm))
}

// SiteStore remembers the AD site this host belongs to for realm.
// An empty site clears the entry.
func (r *Resolver) SiteStore(realm, site string) {
	if realm == "" {
		return
	}
	if site == "" {
		r.cfg.Cache.Delete(siteKey(realm))
		return
	}

	r.cfg.Cache.Set(siteKey(realm), site, time.Time{})
}

// SiteFetch returns the cached AD site for realm, or "".
func (r *Resolver) SiteFetch(realm string) string {
	if realm == "" {
		return ""
	}

	site, _, _ := r.cfg.Cache.Get(siteKey(realm))
	return site
}
