// Package v1 defines the request API of the counters server. The same types
// are used by the server handlers and by the remote counters backend.
//
// Every operation is a POST with a JSON body, except check which is a GET.
//
//	Path          | Request            | Response
//	-------------------------------------------------------------
//	/add          | AddRequest         | AddResult
//	/get_count    | GetCountRequest    | GetCountResult
//	/get_counts   | GetCountsRequest   | GetCountsResult
//	/get_counters | (empty)            | GetCountersResult
//	/check        | (none)             | CheckResult
//
// Keys are arbitrary bytes and are base64 encoded in JSON.
package v1

// Paths served by the counters server.
const (
	PathAdd         = "/add"
	PathGetCount    = "/get_count"
	PathGetCounts   = "/get_counts"
	PathGetCounters = "/get_counters"
	PathCheck       = "/check"
)

// AddRequest asks the server to merge Keys into Collection.
type AddRequest struct {
	Collection string   `json:"collection"`
	Keys       [][]byte `json:"keys"`
}

// AddResult is returned in response to an AddRequest.
type AddResult struct {
	Error *Error `json:"error,omitempty"`
}

// GetCountRequest asks for the count of one collection.
type GetCountRequest struct {
	Collection string `json:"collection"`
}

// GetCountResult contains the count of one collection.
type GetCountResult struct {
	Error *Error `json:"error,omitempty"`
	Count int64  `json:"count"`
}

// GetCountsRequest asks for the counts of several collections.
type GetCountsRequest struct {
	Collections []string `json:"collections"`
}

// GetCountsResult maps each requested collection to its count.
type GetCountsResult struct {
	Error  *Error           `json:"error,omitempty"`
	Counts map[string]int64 `json:"counts"`
}

// GetCountersResult lists the collections known to the server.
type GetCountersResult struct {
	Error    *Error   `json:"error,omitempty"`
	Counters []string `json:"counters"`
}

// CheckResult is returned by the check endpoint.
type CheckResult struct {
	Error *Error `json:"error,omitempty"`
}

// Error describes a failed request.
type Error struct {
	// RFC7807 Fields for "Problem Details".
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// NewError creates a new api Error.
func NewError(typ, title string, status int) *Error {
	return &Error{
		Type:   typ,
		Title:  title,
		Status: status,
	}
}
