package apps

import (
	"context"

	"github.com/mcu-template/taskboot/pkg/tasks"
	"github.com/mcu-template/taskboot/pkg/telemetry"
)

// statsTask logs a heap sample and publishes it.
func statsTask(env *Env, core int) tasks.TaskFunc {
	return func(ctx context.Context) error {
		h := tasks.HeapStats()
		env.Logger.Info("free heap", "core", core, "freeKB", h.FreeKB, "inUseKB", h.InUseKB, "goroutines", h.Goroutines)

		sample := telemetry.StatsSample{
			Board:      env.Config.Board.Name,
			Core:       core,
			FreeKB:     h.FreeKB,
			InUseKB:    h.InUseKB,
			Goroutines: h.Goroutines,
		}
		if err := telemetry.PublishJSON(env.Publisher, telemetry.TopicStats, sample); err != nil {
			env.Logger.Debug("stats not published", "error", err)
		}
		return nil
	}
}

func spawnStats(env *Env, g *tasks.Group) error {
	core := env.statsCore()
	_, err := g.Spawn(tasks.TaskSpec{Name: "stats", Core: core, Period: env.Timing.Stats}, statsTask(env, core))
	return err
}
