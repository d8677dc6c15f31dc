package lookup

// Status classifies the answer of a single profile lookup.
type Status int

const (
	StatusFound Status = iota
	StatusNotFound
	StatusRateLimited
	StatusTransientFailure
)

func (s Status) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusNotFound:
		return "not_found"
	case StatusRateLimited:
		return "rate_limited"
	case StatusTransientFailure:
		return "transient_failure"
	default:
		return "unknown"
	}
}

// Outcome is the normalized result of a lookup. Username and ID are only
// populated when Status is StatusFound, and carry the service's canonical values.
type Outcome struct {
	Status   Status
	Username string
	ID       string
}

func Found(username, id string) Outcome {
	return Outcome{Status: StatusFound, Username: username, ID: id}
}

func (o Outcome) IsFound() bool {
	return o.Status == StatusFound
}
