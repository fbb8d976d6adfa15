// Package demoproto is a small end-to-end demonstration protocol: a
// command/echo service whose connections are hosted as reactor
// actors and whose wire format runs entirely through internal/serial and
// internal/protocol. It exists to exercise C1-C4 together the way spec
// §2's "typical request" walks through the stack: bytes arrive, a
// command is parsed (one of two polymorphic variants, mirroring the
// framework's S3 scenario), and a reply is serialized back out.
package demoproto

import (
	"fmt"
	"strings"

	"github.com/solidframe/solidframe/internal/serial"
)

// ProtocolID namespaces this demo protocol's TypeIDMap entries, distinct
// from any other protocol sharing a process (spec 4.6: "protocol_id
// namespaces type_id").
const ProtocolID uint8 = 1

const (
	typeEchoCommand  uint8 = 1
	typeShoutCommand uint8 = 2
)

// Command is the polymorphic request type this protocol accepts, spec
// S3's "a slice mixing two registered subtypes must round-trip with each
// element resolved to its concrete dynamic type."
type Command interface {
	// Apply returns the text of the reply this command produces.
	Apply() string
}

// EchoCommand asks the service to return text unchanged.
type EchoCommand struct {
	Text string
}

func (c *EchoCommand) Apply() string { return c.Text }

// ShoutCommand asks the service to return text upper-cased.
type ShoutCommand struct {
	Text string
}

func (c *ShoutCommand) Apply() string { return strings.ToUpper(c.Text) }

// NewTypeMap builds the frozen TypeIDMap this protocol's connections
// share, registering both Command variants by pointer (spec 4.6's
// load-returns-a-pointer convention: the load callback queues an
// asynchronous field scan, so the pointer's target is only fully
// populated once the enclosing Run call reaches Success).
func NewTypeMap() (*serial.TypeIDMap, error) {
	m := serial.NewTypeIDMap()

	echoKey := serial.TypeKey{ProtocolID: ProtocolID, TypeID: typeEchoCommand}
	err := m.Register(
		(*EchoCommand)(nil), echoKey,
		func(s *serial.Serializer, v interface{}) error {
			c := v.(*EchoCommand)
			s.PushString(c.Text)
			return nil
		},
		func(d *serial.Deserializer) (interface{}, error) {
			c := &EchoCommand{}
			d.PushString(&c.Text)
			return c, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("demoproto: register EchoCommand: %w", err)
	}

	shoutKey := serial.TypeKey{ProtocolID: ProtocolID, TypeID: typeShoutCommand}
	err = m.Register(
		(*ShoutCommand)(nil), shoutKey,
		func(s *serial.Serializer, v interface{}) error {
			c := v.(*ShoutCommand)
			s.PushString(c.Text)
			return nil
		},
		func(d *serial.Deserializer) (interface{}, error) {
			c := &ShoutCommand{}
			d.PushString(&c.Text)
			return c, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("demoproto: register ShoutCommand: %w", err)
	}

	return m, nil
}
