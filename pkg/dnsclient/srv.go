package dnsclient

import "github.com/miekg/dns"

// SRV query names for domain controller and KDC discovery.
// Site-aware variants restrict discovery to one AD site.

// PDCName assembles the SRV name locating the primary domain
// controller of a domain.
func PDCName(domain string) string {
	return dns.Fqdn("_ldap._tcp.pdc._msdcs." + domain)
}

// DCName assembles the SRV name locating the domain controllers of a
// domain, optionally scoped to a site.
func DCName(domain, site string) string {
	if site != "" {
		return dns.Fqdn("_ldap._tcp." + site + "._sites.dc._msdcs." + domain)
	}
	return dns.Fqdn("_ldap._tcp.dc._msdcs." + domain)
}

// KDCName assembles the SRV name locating the Kerberos KDCs of a
// realm, optionally scoped to a site.
func KDCName(realm, site string) string {
	if site != "" {
		return dns.Fqdn("_kerberos._udp." + site + "._sites." + realm)
	}
	return dns.Fqdn("_kerberos._udp." + realm)
}
