// Package station provides radio drivers for the join coordinator.
//
// SimDriver simulates a WiFi station against a table of access points and
// is what the host build joins through. ScriptDriver replays a fixed list
// of connectivity events and is used to reproduce driver behaviour in
// tests.
//
// Both drivers deliver events from a dispatcher goroutine, so Connect never
// blocks on the consumer of the event channel.
package station
