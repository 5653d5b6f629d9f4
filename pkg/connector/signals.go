package connector

// signalNumbers maps RFC 4254 signal names to Linux signal numbers.
var signalNumbers = map[string]int64{
	"HUP":  1,
	"INT":  2,
	"QUIT": 3,
	"ILL":  4,
	"ABRT": 6,
	"FPE":  8,
	"KILL": 9,
	"USR1": 10,
	"SEGV": 11,
	"USR2": 12,
	"PIPE": 13,
	"ALRM": 14,
	"TERM": 15,
}

// signalStatus converts an exit-signal name into the negated signal number
// reported as process status. Unknown names report false.
func signalStatus(name string) (int64, bool) {
	n, ok := signalNumbers[name]
	if !ok {
		return 0, false
	}
	return -n, true
}
