// Package fingerprint derives cache keys from flight searches.
package fingerprint

import (
	"strconv"
	"strings"

	"github.com/wanderwise/wanderwise/model"
)

const FlightsPrefix = "flights"

const separator = ":"

var escaper = strings.NewReplacer("%", "%25", separator, "%3A")

// Flights returns flights:<ORIGIN>:<DEST>:<YYYY-MM-DD>:<passengers> for the normalized
// request. Two requests get the same key iff their normalized fields are equal.
func Flights(req model.SearchRequest) string {
	req = req.Normalized()
	return strings.Join([]string{
		FlightsPrefix,
		escaper.Replace(req.OriginCode),
		escaper.Replace(req.DestinationCode),
		escaper.Replace(req.DepartureDate),
		strconv.Itoa(req.PassengerCount),
	}, separator)
}

// FlightsForJob re-derives the key on the worker side from the job payload.
func FlightsForJob(job model.FlightJob) string {
	return Flights(job.SearchRequest())
}
