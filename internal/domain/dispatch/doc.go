/*
Package dispatch threads protocol requests through registered endpoints.

Every route an endpoint binds is composed as

	resolve + instantiate -> session (:sid) -> endpoint handler -> serializer

The resolve step (Handle) is usable on its own for arbitrary routes. The
serializer writes the protocol Payload and, when the session holds a
confirmation staged by a different endpoint instance, lets that instance
collect it through its Transform hook before attaching it to the payload.

Errors raised anywhere in the chain are recorded on the gin context and
translated to WebDriver wire errors by the Errors middleware.
*/
package dispatch
