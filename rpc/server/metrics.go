package server

import (
	"fmt"
	"time"

	"github.com/ValentinKolb/secstore/rpc/common"
	"github.com/VictoriaMetrics/metrics"
)

// domainMetrics holds the prometheus series of one storage domain, indexed by command
type domainMetrics struct {
	requests  map[common.CommandID]*metrics.Counter
	errors    map[common.CommandID]*metrics.Counter
	durations map[common.CommandID]*metrics.Histogram
	sizes     map[common.CommandID]*metrics.Histogram
}

// unknownCommands counts requests with a command id outside the command table
var unknownCommands = metrics.NewCounter(`secstore_unknown_command_requests_total`)

func newDomainMetrics(domain common.StorageDomain) *domainMetrics {
	m := &domainMetrics{
		requests:  make(map[common.CommandID]*metrics.Counter),
		errors:    make(map[common.CommandID]*metrics.Counter),
		durations: make(map[common.CommandID]*metrics.Histogram),
		sizes:     make(map[common.CommandID]*metrics.Histogram),
	}

	for _, cmd := range common.Commands() {
		labels := fmt.Sprintf(`{domain=%q,cmd=%q}`, domain.String(), cmd.String())
		m.requests[cmd] = metrics.GetOrCreateCounter("secstore_requests_total" + labels)
		m.errors[cmd] = metrics.GetOrCreateCounter("secstore_request_errors_total" + labels)
		m.durations[cmd] = metrics.GetOrCreateHistogram("secstore_request_duration_seconds" + labels)
		m.sizes[cmd] = metrics.GetOrCreateHistogram("secstore_response_size_bytes" + labels)
	}
	return m
}

func (m *domainMetrics) observe(cmd common.CommandID, responseSize int, start time.Time) {
	if !cmd.Valid() {
		unknownCommands.Inc()
		return
	}
	m.requests[cmd].Inc()
	m.durations[cmd].UpdateDuration(start)
	m.sizes[cmd].Update(float64(responseSize))
}

func (m *domainMetrics) failed(cmd common.CommandID) {
	if c, ok := m.errors[cmd]; ok {
		c.Inc()
	}
}
