package events

import (
	"context"
	"encoding/json"

	"github.com/wailsapp/wails/v2/pkg/runtime"
)

// logRuntimeEvent mirrors every emitted notice into the Wails runtime log at
// a level matching the notice type, so the dev console shows the same stream
// the frontend receives.
func logRuntimeEvent(ctx context.Context, name string, event Notice) {
	data, err := json.Marshal(event)
	if err != nil {
		runtime.LogError(ctx, "events: marshal notice for "+name+": "+err.Error())
		return
	}

	line := string(data)
	switch event.Type {
	case EventError:
		runtime.LogError(ctx, line)
	case EventWarn:
		runtime.LogWarning(ctx, line)
	default:
		runtime.LogInfo(ctx, line)
	}
}
