// Package server assembles the proxy: session store, bridge, endpoint
// registry and dispatcher, the forward proxy, the browser launcher and the
// gin router, behind one http.Handler.
package server
