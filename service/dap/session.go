package dap

import (
	"encoding/json"

	"github.com/swiftshader/dbgserver/service/dap/wire"
)

// Handler is a request handler: it receives the Connection the request
// arrived on and the request's already-decoded arguments (constructed and
// deserialized by the registry from the argsZero value supplied at
// Register time, or nil for a command that takes none), and returns
// either a response body or a protocol Error, per spec §4.2/§4.4.
type Handler func(c *Connection, args interface{}) (interface{}, *Error)

// HandlerRegistry is the spec's "Session / dispatcher" component: a
// registry of request handlers keyed by DAP command string, backed by a
// wire.Registry that does the actual argument/body marshalling (spec
// §4.2 steps 2-3 and 5). It is shared across every Connection the Server
// accepts, since handlers close only over per-connection state passed
// explicitly as the first argument.
type HandlerRegistry struct {
	wire *wire.Registry

	byCommand    map[string]Handler
	argsZero     map[string]interface{}
	responseSent map[string]func(c *Connection)
}

func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		wire:         wire.NewRegistry(),
		byCommand:    make(map[string]Handler),
		argsZero:     make(map[string]interface{}),
		responseSent: make(map[string]func(c *Connection)),
	}
}

// Register installs handler for command, replacing any previous
// registration. argsZero is a zero value of command's arguments type, or
// nil for a command that takes none; its type drives the registry's
// construct-then-deserialize step before handler is invoked. Used once at
// startup for the mandatory §4.8 command set, but kept public so the
// embedding glue layer could extend it.
func (r *HandlerRegistry) Register(command string, argsZero interface{}, handler Handler) {
	r.byCommand[command] = handler
	r.argsZero[command] = argsZero
}

// RegisterResponseSent installs hook to run after a response to command
// has been framed and written, per spec §4.2 step 6 -- used by
// "initialize" to emit the spontaneous "initialized" event only once the
// client has actually seen the initialize response.
func (r *HandlerRegistry) RegisterResponseSent(command string, hook func(c *Connection)) {
	r.responseSent[command] = hook
}

func (r *HandlerRegistry) lookup(command string) (Handler, bool) {
	h, ok := r.byCommand[command]
	return h, ok
}

func (r *HandlerRegistry) lookupResponseSent(command string) (func(c *Connection), bool) {
	h, ok := r.responseSent[command]
	return h, ok
}

// decodeArgs builds command's arguments value via the wire registry and
// deserializes raw into it, per spec §4.2 steps 2-3. A command registered
// with a nil argsZero (one that takes no arguments) always yields a nil
// args value, regardless of what raw contains.
func (r *HandlerRegistry) decodeArgs(command string, raw json.RawMessage) (interface{}, *Error) {
	zero := r.argsZero[command]
	if zero == nil {
		return nil, nil
	}
	d := r.wire.DescriptorFor(zero)
	out := d.Construct()
	if len(raw) > 0 {
		var tree wire.Tree
		if err := json.Unmarshal(raw, &tree); err != nil {
			return nil, newError(ErrDecodeArguments, "cannot decode arguments: %v", err)
		}
		if err := d.Deserialize(tree, out); err != nil {
			return nil, newError(ErrDecodeArguments, "cannot decode arguments: %v", err)
		}
	}
	return out, nil
}

// encodeBody serializes a handler's returned body into a wire.Tree via
// the registry, per spec §4.2 step 5. A nil body yields a nil Tree.
func (r *HandlerRegistry) encodeBody(body interface{}) (wire.Tree, error) {
	if body == nil {
		return nil, nil
	}
	return r.wire.DescriptorFor(body).Serialize(body)
}
