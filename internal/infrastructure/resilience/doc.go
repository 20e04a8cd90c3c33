/*
Package resilience guards proxied origins with circuit breakers.

Each upstream host gets its own Breaker. A breaker opens after the Trip
predicate fires, rejects calls for the Cooldown, then lets Trials requests
through half-open before closing again:

	Closed --[trip]--> Open --[cooldown]--> Half-Open --[trials ok]--> Closed
	                     ^                      |
	                     +------[failure]-------+

Hosts.Transport wraps an http.RoundTripper so the forward proxy fails fast
for origins that keep refusing connections.

	hosts := resilience.NewHosts(resilience.DefaultSettings())
	client := &http.Client{Transport: hosts.Transport(nil)}
*/
package resilience
