package metrics

import "github.com/prometheus/client_golang/prometheus"

// Booking actions.
const (
	ActionCreate  = "create"
	ActionStatus  = "status"
	ActionCancel  = "cancel"
	ActionReplace = "layout_replace"
)

// Outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeConflict = "conflict"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// BookingMetrics counts ledger operations by outcome and the number of
// seats booked.
type BookingMetrics struct {
	operations  *prometheus.CounterVec
	seatsBooked prometheus.Counter
}

// NewBookingMetrics registers the booking collectors on reg.
func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	if reg == nil {
		return &BookingMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_operations_total",
		Help: "Booking ledger operations by action and outcome.",
	}, []string{"action", "outcome"})
	seatsBooked := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "booking_seats_booked_total",
		Help: "Seats booked through successful create requests.",
	})
	reg.MustRegister(operations, seatsBooked)
	return &BookingMetrics{operations: operations, seatsBooked: seatsBooked}
}

// Record counts one operation.
func (m *BookingMetrics) Record(action, outcome string) {
	if m == nil || m.operations == nil {
		return
	}
	m.operations.WithLabelValues(normalizeLabel(action), normalizeLabel(outcome)).Inc()
}

// AddSeatsBooked adds n to the booked-seat counter.
func (m *BookingMetrics) AddSeatsBooked(n int) {
	if m == nil || m.seatsBooked == nil || n <= 0 {
		return
	}
	m.seatsBooked.Add(float64(n))
}
