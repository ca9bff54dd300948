package engineinfo

import "os"

// DebugEnabled controls whether verbose diagnostic logging is enabled. It is
// set automatically based on the TRIAGE_DEBUG environment variable.
var DebugEnabled bool

func init() {
	DebugEnabled = os.Getenv("TRIAGE_DEBUG") == "1"
}
