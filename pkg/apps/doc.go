// Package apps contains the applications the board can boot into.
//
// The table order is fixed and selects the app by index:
//
//	0  wifi_basic    WiFi + mDNS + Stats
//	1  multi_thread  Multi-core threading demo
//	2  http_server   Simple HTTP web server
package apps
