package config

// BasicService is used as a simple base for oracle services like the read API,
// Pprof or Prometheus monitoring.
type BasicService struct {
	Enabled bool `yaml:"Enabled"`
	// Addresses holds the list of bind addresses in the form of "address:port".
	Addresses []string `yaml:"Addresses"`
}

// GetAddresses returns the set of unique (in terms of raw strings) bind
// addresses of the service.
func (s BasicService) GetAddresses() []string {
	addrs := make([]string, 0, len(s.Addresses))
	seen := make(map[string]struct{}, len(s.Addresses))
	for _, a := range s.Addresses {
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		addrs = append(addrs, a)
	}
	return addrs
}
