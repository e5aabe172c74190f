package main

import (
	"context"

	"edubag/cmd/edubag/commands"
	"edubag/lib/osutil"
	"edubag/lib/telemetry"
)

func main() {
	ctx := osutil.SignalContext()
	t, err := telemetry.SetupFromEnv(ctx, "edubag")
	if err == nil {
		defer t.Shutdown(context.Background())
	}
	telemetry.InitSlog(false)
	telemetry.InstrumentPerfStats(ctx)
	commands.ExecuteContext(ctx)
}
