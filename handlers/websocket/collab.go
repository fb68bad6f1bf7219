package websocket

import (
	"codesync-server/core"
	"codesync-server/metrics"
	"codesync-server/session"
	"fmt"
	"regexp"

	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
	"github.com/zishang520/engine.io/v2/types"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

type ackInvoker func(payload map[string]any)

var localhostOrigin = regexp.MustCompile(`^https?://(localhost|127\.0\.0\.1|\[::1\])(:\d+)?$`)

// NewServer builds the socket.io server. Localhost origins are always
// allowed; extraOrigins adds exact origins, "*" allows any.
func NewServer(extraOrigins []string) *socketio.Server {
	opts := socketio.DefaultServerOptions()
	opts.SetMaxHttpBufferSize(5000000)
	opts.SetPath("/socket.io")
	opts.SetAllowEIO3(true)

	var origin any = []any{localhostOrigin}
	for _, o := range extraOrigins {
		if o == "*" {
			origin = "*"
			break
		}
		origin = append(origin.([]any), o)
	}
	opts.SetCors(&types.Cors{
		Origin:      origin,
		Credentials: true,
	})
	return socketio.NewServer(nil, opts)
}

type eventHandler func(socketID string, args []any) error

// typed adapts a router method to the raw socket.io argument list.
func typed[T any](handle func(socketID string, payload T) error) eventHandler {
	return func(socketID string, args []any) error {
		var payload T
		if err := decodePayload(args, &payload); err != nil {
			logrus.WithFields(logrus.Fields{
				"socket_id": socketID,
				"payload":   fmt.Sprintf("%T", payload),
				"error":     err,
			}).Warn("Failed to decode session event")
			return err
		}
		return handle(socketID, payload)
	}
}

func sessionHandlers(router *session.Router) map[string]eventHandler {
	return map[string]eventHandler{
		session.EventJoin:       typed(router.Join),
		session.EventCodeChange: typed(router.CodeChange),
		session.EventSyncCode:   typed(router.SyncCode),
		session.EventSyncFiles:  typed(router.SyncFiles),
		session.EventNewFile:    typed(router.NewFile),
		session.EventRenameFile: typed(router.RenameFile),
		session.EventActiveFile: typed(router.ActiveFile),
		session.EventDeleteFile: typed(router.DeleteFile),
		session.EventLeave:      typed(router.Leave),
	}
}

// Bind registers the session event handlers on every new connection.
//
// Events are taken from OnAny, which socket.io calls on the connection's read
// loop in arrival order, and applied by one worker per connection. Named
// listeners are not used for them: socket.io runs each of those on its own
// goroutine. The listeners are attached in namespace middleware because the
// CONNECT reply goes out before "connection" handlers run.
func Bind(srv *socketio.Server, router *session.Router) {
	handlers := sessionHandlers(router)

	srv.Use(func(socket *socketio.Socket, next func(*socketio.ExtendedError)) {
		attach(socket, handlers, router)
		next(nil)
	})

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	srv.On("connection", func(clients ...any) {
		socket, ok := clients[0].(*socketio.Socket)
		if !ok {
			return
		}
		metrics.SocketConnected()
		logrus.WithField("socket_id", string(socket.Id())).Debug("Socket connected")
	})
}

func attach(socket *socketio.Socket, handlers map[string]eventHandler, router *session.Router) {
	me := string(socket.Id())
	queue := newEventQueue(eventQueueSize, func(ev inboundEvent) {
		handleEvent(handlers, me, ev)
	})

	socket.OnAny(func(datas ...any) {
		if len(datas) == 0 {
			return
		}
		name, ok := datas[0].(string)
		if !ok {
			return
		}
		ack, args := extractAck(datas[1:])
		if !queue.push(inboundEvent{name: name, args: args, ack: ack}) {
			logrus.WithFields(logrus.Fields{"socket_id": me, "event": name}).Debug("Dropped event after disconnect")
		}
	})

	//nolint:errcheck
	socket.On("disconnecting", func(...any) {
		queue.closeAndWait()
		router.Disconnecting(me)
	})

	//nolint:errcheck
	socket.On("disconnect", func(datas ...any) {
		queue.closeAndWait()
		metrics.SocketDisconnected()
		logrus.WithFields(logrus.Fields{"socket_id": me, "reason": datas}).Debug("Socket disconnected")
	})
}

func handleEvent(handlers map[string]eventHandler, socketID string, ev inboundEvent) {
	handle, ok := handlers[ev.name]
	if !ok {
		logrus.WithFields(logrus.Fields{"socket_id": socketID, "event": ev.name}).Debug("Ignoring unknown event")
		return
	}

	err := handle(socketID, ev.args)
	if ev.ack != nil {
		ev.ack(makeAckPayload(err))
	}
}

func decodePayload(args []any, out any) error {
	if len(args) == 0 || args[0] == nil {
		return fmt.Errorf("missing payload: %w", core.ErrInvalidPayload)
	}
	if _, ok := args[0].(map[string]any); !ok {
		return fmt.Errorf("payload must be an object, got %T: %w", args[0], core.ErrInvalidPayload)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(args[0]); err != nil {
		return fmt.Errorf("%v: %w", err, core.ErrInvalidPayload)
	}
	return nil
}

func extractAck(datas []any) (ack ackInvoker, args []any) {
	if len(datas) == 0 {
		return nil, datas
	}

	ack = wrapAck(datas[len(datas)-1])
	if ack == nil {
		return nil, datas
	}
	return ack, datas[:len(datas)-1]
}

func wrapAck(candidate any) ackInvoker {
	fn, ok := candidate.(func([]any, error))
	if !ok || fn == nil {
		return nil
	}
	return func(payload map[string]any) {
		fn([]any{payload}, nil)
	}
}

func makeAckPayload(err error) map[string]any {
	if err == nil {
		return map[string]any{"status": "ok"}
	}
	return map[string]any{
		"status": "error",
		"error":  err.Error(),
		"code":   core.ErrorCode(err),
	}
}
