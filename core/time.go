package core

import "time"

// nowUnix returns the current Unix timestamp, the clock source used for
// every timestamp stamped into outgoing messages and task bookkeeping.
func nowUnix() int64 { return time.Now().Unix() }
