// Package netjoin drives a station-mode wireless join to a single terminal
// outcome.
//
// A join attempt is owned by a Coordinator. The radio driver delivers
// connectivity events over a channel; the coordinator consumes them on its
// own goroutine and applies them to the attempt's JoinState:
//
//	PENDING --DriverStarted-----------------------> PENDING   (connect request)
//	PENDING --Disconnected, retries < max---------> PENDING   (connect request, retries+1)
//	PENDING --Disconnected, retries >= max--------> FAILED
//	PENDING --AddressAcquired---------------------> CONNECTED (retries reset to 0)
//	CONNECTED, FAILED, TIMED_OUT --any event------> unchanged (late event)
//
// # Retries
//
// Retrying is purely count-based. A Disconnected event while the retry
// budget has room triggers exactly one new connect request; there is no
// backoff delay and no jitter between requests.
//
// # Outcomes and errors
//
// BeginJoin blocks until the attempt reaches CONNECTED, FAILED or
// TIMED_OUT. Exhausting the retry budget is reported as OutcomeFailed, not
// as an error, and the caller may start a new attempt. Errors are reserved
// for setup failures (ErrSetup) and cancellation of the caller's context.
package netjoin
