package errors

import "context"

const (
	// NOANSWER is the text on [net.DNSError].Err if no reply was
	// heard before the deadline
	NOANSWER = "no answer"
	// NODATA is the text on [net.DNSError].Err if an authoritative server
	// returned no answer
	NODATA = "NODATA"
	// NXDOMAIN is the text on [net.DNSError].Err if the server returned a
	// Name error
	NXDOMAIN = "NXDOMAIN"
	// NEGATIVE is the text on [net.DNSError].Err if a name server
	// returned a well-formed negative name query response
	NEGATIVE = "negative name query response"
	// TRUNCATED is the text on [net.DNSError].Err if the server returned a
	// truncated response
	TRUNCATED = "dns response was truncated"
	// BADREQUEST is the text on [net.DNSError].Err if the client request
	// is invalid
	BADREQUEST = "invalid request"
	// BADRESPONSE is the text on [net.DNSError].Err if the server response
	// is invalid
	BADRESPONSE = "invalid response from server"
	// BADADDRESS is the text on [net.DNSError].Err if a given address
	// is malformed, zero, or of the wrong family
	BADADDRESS = "invalid address"
	// NOTSUPPORTED is the text on [net.DNSError].Err if the requested
	// resolution method is disabled by configuration
	NOTSUPPORTED = "resolution method disabled"
	// NOLOGONSERVERS is the text on [net.DNSError].Err if a domain
	// controller lookup produced no usable servers
	NOLOGONSERVERS = "no logon servers"
)

var (
	// CANCELLED indicates the context the exchange was using was
	// cancelled.
	CANCELLED = context.Canceled.Error()
	// DEADLINEEXCEEDED indicates the deadline the exchange was given
	// has been exceeded.
	DEADLINEEXCEEDED = context.DeadlineExceeded.Error()
)
