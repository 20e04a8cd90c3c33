/*
Package proxy forwards browser traffic to its origin and injects the
browser runtime into HTML pages.

The browser under automation is configured to use the server as its HTTP
proxy. Requests outside the web-driverify prefix arrive here with an
absolute URI and are forwarded through an httputil.ReverseProxy whose
transport is guarded by per-host circuit breakers. HTML responses are
decoded (gzip via klauspost/compress), parsed with goquery and given a
<script> tag loading the runtime before they reach the browser.

CONNECT requests are tunneled without inspection.
*/
package proxy
