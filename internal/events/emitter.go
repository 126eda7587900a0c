package events

import (
	"context"

	"github.com/wailsapp/wails/v2/pkg/runtime"
)

// Emit delivers a notification. EmitPayload delivers a typed event payload on
// a named channel. Both are inert until EnableRuntimeEmitter wires them to the
// webview; tests install capture functions instead.
var Emit = func(ctx context.Context, name string, evt Notice) {}

var EmitPayload = func(ctx context.Context, name string, payload interface{}) {}

func EnableRuntimeEmitter() {
	Emit = func(ctx context.Context, name string, evt Notice) {
		if evt.SessionKey == "" {
			if session := SessionFromContext(ctx); session != "" {
				evt.SessionKey = session
			}
		}

		runtime.EventsEmit(ctx, name, evt)
		logRuntimeEvent(ctx, name, evt)
	}
	EmitPayload = func(ctx context.Context, name string, payload interface{}) {
		runtime.EventsEmit(ctx, name, payload)
	}
}

func SetCustomEmitter(f func(ctx context.Context, name string, evt Notice)) {
	if f == nil {
		Emit = func(context.Context, string, Notice) {}
		return
	}
	Emit = func(ctx context.Context, name string, evt Notice) {
		if evt.SessionKey == "" {
			if session := SessionFromContext(ctx); session != "" {
				evt.SessionKey = session
			}
		}
		f(ctx, name, evt)
	}
}

func SetCustomPayloadEmitter(f func(ctx context.Context, name string, payload interface{})) {
	if f == nil {
		EmitPayload = func(context.Context, string, interface{}) {}
		return
	}
	EmitPayload = f
}
