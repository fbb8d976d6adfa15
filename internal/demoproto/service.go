package demoproto

import (
	"context"
	"fmt"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/solidframe/solidframe/internal/baselib/actor"
)

// commandServiceKey names the baselib/actor service every CommandService
// registers under, so a reactor.Scheduler's admin surface could in
// principle route to it via the receptionist.
var commandServiceKey = actor.NewServiceKey[commandMsg, string]("demoproto-command")

// commandMsg adapts a wire Command into a baselib/actor message; actor
// messages must be independently typed from the wire Command interface
// since Message is a sealed interface.
type commandMsg struct {
	actor.BaseMessage
	cmd Command
}

// MessageType implements actor.Message.
func (commandMsg) MessageType() string { return "demoproto.commandMsg" }

// CommandService applies Commands on its own goroutine, off any reactor's
// poll loop, reached by ConnActor via Ask. A command whose Apply blocks
// only ever stalls this one actor's goroutine, and one whose Apply panics
// is answered with an error; neither reaches the reactor that accepted the
// connection it arrived on.
type CommandService struct {
	system *actor.ActorSystem
	ref    actor.ActorRef[commandMsg, string]
}

// NewCommandService spawns the command actor under a fresh ActorSystem.
// Callers own the returned service's lifetime; Shutdown stops the actor
// and releases the system.
func NewCommandService() *CommandService {
	system := actor.NewActorSystemWithConfig(actor.SystemConfig{
		MailboxCapacity: 256,
	})

	behavior := actor.NewFunctionBehavior(
		func(_ context.Context, msg commandMsg) (res fn.Result[string]) {
			defer func() {
				if r := recover(); r != nil {
					res = fn.Err[string](fmt.Errorf(
						"demoproto: command panicked: %v", r,
					))
				}
			}()
			return fn.Ok(msg.cmd.Apply())
		},
	)

	ref := commandServiceKey.Spawn(system, "demoproto-command-service", behavior)

	return &CommandService{system: system, ref: ref}
}

// Apply asks the command actor to evaluate cmd and invokes done once a
// result is ready. done runs on the goroutine Apply starts for the Ask,
// never on the caller's; callers that need to touch reactor-owned state
// from done must hand off via reactor.PostEvent rather than call in
// directly. The Ask itself runs on a fresh goroutine so a full mailbox
// never blocks the caller.
func (s *CommandService) Apply(ctx context.Context, cmd Command, done func(reply string, err error)) {
	go func() {
		future := s.ref.Ask(ctx, commandMsg{cmd: cmd})

		result := future.Await(ctx)
		result.WhenOk(func(reply string) { done(reply, nil) })
		result.WhenErr(func(err error) { done("", err) })
	}()
}

// Shutdown stops the command actor and its backing system.
func (s *CommandService) Shutdown(ctx context.Context) error {
	return s.system.Shutdown(ctx)
}
