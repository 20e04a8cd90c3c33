package endpoint

import (
	"github.com/GriffinCanCode/webdriverify/internal/domain/session"
	"github.com/GriffinCanCode/webdriverify/internal/shared/types"
)

// Endpoint is one instance of a protocol command handler. Implementations
// embed Base, which supplies identity and the DTO.
type Endpoint interface {
	ID() string
	Name() string
	DTO() types.Command
	base() *Base
}

// RouteBinder is implemented by endpoints that own HTTP routes
type RouteBinder interface {
	Bind(r Router)
}

// Transformer is implemented by endpoints that rewrite a later response on
// the same session, typically to collect the confirmation they staged
type Transformer interface {
	Transform(data types.Payload, sess *session.Session) types.Payload
}

// HandlerFunc handles a request for one endpoint instance. It must call
// r.Next() to hand the prepared payload to the protocol serializer, and must
// not write the HTTP response itself.
type HandlerFunc func(r *Request) error

// Router is the route table handed to RouteBinder.Bind. Paths containing a
// :sid segment are resolved to a session before the handler runs.
type Router interface {
	Handle(method, path string, h HandlerFunc)
	GET(path string, h HandlerFunc)
	POST(path string, h HandlerFunc)
	DELETE(path string, h HandlerFunc)
}

// Base carries the identity shared by every endpoint
type Base struct {
	id   string
	name string
}

// ID returns the instance's command ID (empty on registration prototypes)
func (b *Base) ID() string { return b.id }

// Name returns the canonical command name
func (b *Base) Name() string { return b.name }

// DTO returns the serializable representation exchanged with the browser
// and returned to the client as an acknowledgment
func (b *Base) DTO() types.Command {
	return types.Command{ID: b.id, Name: b.name}
}

func (b *Base) base() *Base { return b }
