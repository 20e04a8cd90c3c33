package endpoints

import (
	"fmt"

	"github.com/GriffinCanCode/webdriverify/internal/domain/bridge"
	"github.com/GriffinCanCode/webdriverify/internal/domain/endpoint"
	"github.com/GriffinCanCode/webdriverify/internal/domain/session"
	"github.com/GriffinCanCode/webdriverify/internal/infrastructure/logging"
)

// Deps are the collaborators shared by every command
type Deps struct {
	Sessions *session.Store
	Bridge   *bridge.Bridge
	Logger   *logging.Logger
	Version  string
}

func (d *Deps) logger(name string) *logging.Logger {
	if d.Logger == nil {
		return logging.Nop()
	}
	return d.Logger.Named("endpoints." + name)
}

// RegisterAll adds every command to reg
func RegisterAll(reg *endpoint.Registry, deps Deps) error {
	d := &deps
	factories := []endpoint.Factory{
		func() endpoint.Endpoint { return NewNewSession(d) },
		func() endpoint.Endpoint { return &DeleteSession{deps: d} },
		func() endpoint.Endpoint { return &Status{deps: d} },
		func() endpoint.Endpoint { return &Forward{navigation{deps: d}} },
		func() endpoint.Endpoint { return &Back{navigation{deps: d}} },
		func() endpoint.Endpoint { return &Refresh{navigation{deps: d}} },
		func() endpoint.Endpoint { return &Navigate{navigation{deps: d}} },
		func() endpoint.Endpoint { return &Screenshot{deps: d} },
		func() endpoint.Endpoint { return &Title{deps: d} },
		func() endpoint.Endpoint { return &Execute{deps: d} },
	}

	for _, f := range factories {
		if _, err := reg.Register(f); err != nil {
			return fmt.Errorf("registering endpoints: %w", err)
		}
	}
	return nil
}
