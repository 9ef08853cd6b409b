package cluster

// Consistency selects how many replicas must answer a statement.
// Drivers map it to their own enumerated levels.
type Consistency int

const (
	// StrictAll requires every replica in every datacenter to acknowledge.
	StrictAll Consistency = iota + 1

	// LocalWeak requires a single replica of the local datacenter.
	// It shows what an ordinary same-datacenter client would see.
	LocalWeak
)

func (c Consistency) String() string {
	switch c {
	case StrictAll:
		return "STRICT_ALL"
	case LocalWeak:
		return "LOCAL_WEAK"
	default:
		return "UNKNOWN"
	}
}
