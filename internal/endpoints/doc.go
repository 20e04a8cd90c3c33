/*
Package endpoints implements the protocol commands served by the proxy.

Each command is a type embedding endpoint.Base; its Go type name is the
command name and, for commands executed in the page, the name of the
browser-side handler.

Commands:
  - NewSession, DeleteSession, Status: session lifecycle
  - Forward, Back, Refresh, Navigate: navigation with deferred confirmation
  - Screenshot, Title, Execute: evaluated in the page over the bridge

Navigation unloads the page that would answer, so those commands push to
the browser without waiting and stage a confirmation that the next request
on the session collects.
*/
package endpoints
