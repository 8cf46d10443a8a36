// Package monitor polls saved brokers on a schedule and keeps their latest
// connection status.
//
// A cron job runs ValidateConnection against every broker in the registry.
// Only the newest status per broker is held in memory; every sample is also
// appended to a SQLite history, which is migrated on open with goose.
//
// Uptime is the time since the first connected sample that followed the
// broker's most recent non-connected sample.
//
//	h, _ := monitor.OpenHistory(settings.HistoryDB)
//	m := monitor.New(client, registry, monitor.WithHistory(h))
//	_ = m.Start(ctx)
//	snaps, cancel := m.Subscribe()
//	defer cancel()
package monitor
