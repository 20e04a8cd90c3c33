package types

// Command is the externally visible representation of an endpoint instance.
// The browser runtime looks up its handler by Name.
type Command struct {
	ID   string                 `json:"id"`
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args,omitempty"`
}

// WithArgs returns a copy of the command carrying args
func (c Command) WithArgs(args map[string]interface{}) Command {
	c.Args = args
	return c
}

// Confirmation describes a command whose completion is observed later,
// typically after the page it triggered has finished loading.
type Confirmation struct {
	Cmd  Command `json:"cmd"`
	Data string  `json:"data"`
}

// Reply is what the browser reports once a command handler finished.
type Reply struct {
	Command Command     `json:"command"`
	Result  interface{} `json:"result,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Failed reports whether the browser handler raised
func (r Reply) Failed() bool {
	return r.Error != ""
}
