package apps

import (
	"context"
)

// RunWiFiBasic joins the network, advertises the board over mDNS and
// reports heap statistics until ctx is done.
func RunWiFiBasic(ctx context.Context, env *Env) error {
	env = env.withDefaults()
	env.Logger.Info("wifi app starting", "board", env.Config.Board.Name)

	snap, err := joinNetwork(ctx, env)
	if err != nil {
		return err
	}

	advertise(ctx, env, WiFiBasic, env.Config.MDNS.Port, snap)
	defer env.Advertiser.StopAll()

	g := env.newGroup(ctx)
	if err := spawnStats(env, g); err != nil {
		g.Stop()
		_ = g.Wait()
		return err
	}
	return g.Wait()
}
