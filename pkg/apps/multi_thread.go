package apps

import (
	"context"

	"github.com/mcu-template/taskboot/pkg/tasks"
)

// RunMultiThread runs a hello task on core 0 and a stats task on core 1
// until ctx is done.
func RunMultiThread(ctx context.Context, env *Env) error {
	env = env.withDefaults()
	env.Logger.Info("multi-threading app starting")

	g := env.newGroup(ctx)

	counter := 0
	_, err := g.Spawn(tasks.TaskSpec{Name: "hello", Core: 0, Period: env.Timing.Hello}, func(context.Context) error {
		env.Logger.Info("hello", "core", 0, "count", counter)
		counter++
		return nil
	})
	if err == nil {
		err = spawnStats(env, g)
	}
	if err != nil {
		g.Stop()
		_ = g.Wait()
		return err
	}

	env.Logger.Info("tasks created", "tasks", len(g.Tasks()), "cores", g.Cores())
	return g.Wait()
}
