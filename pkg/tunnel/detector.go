package tunnel

import (
	"github.com/velemoonkon/dnssentry/pkg/record"
)

// Detector recognizes the query shape of one tunneling tool
type Detector interface {
	// Name returns the detector name (dnstt, iodine, dnscat2, dns2tcp)
	Name() string

	// Match reports whether r looks like traffic from the tool
	Match(r *record.Record) bool
}

// Registry manages available tunnel detectors
type Registry struct {
	detectors map[string]Detector
	order     []string
}

// NewRegistry creates a new detector registry
func NewRegistry() *Registry {
	return &Registry{
		detectors: make(map[string]Detector),
	}
}

// DefaultRegistry returns a registry with every built-in detector
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(DNScat2Detector{})
	r.Register(IodineDetector{})
	r.Register(DNSTTDetector{})
	r.Register(DNS2TCPDetector{})
	return r
}

// Register adds a detector to the registry, replacing one with the same name
func (r *Registry) Register(detector Detector) {
	name := detector.Name()
	if _, ok := r.detectors[name]; !ok {
		r.order = append(r.order, name)
	}
	r.detectors[name] = detector
}

// Get retrieves a detector by name
func (r *Registry) Get(name string) (Detector, bool) {
	detector, ok := r.detectors[name]
	return detector, ok
}

// All returns all registered detectors in registration order
func (r *Registry) All() []Detector {
	detectors := make([]Detector, 0, len(r.order))
	for _, name := range r.order {
		detectors = append(detectors, r.detectors[name])
	}
	return detectors
}

// Match returns the names of the detectors matching rec
func (r *Registry) Match(rec *record.Record) []string {
	var names []string
	for _, detector := range r.All() {
		if detector.Match(rec) {
			names = append(names, detector.Name())
		}
	}
	return names
}
