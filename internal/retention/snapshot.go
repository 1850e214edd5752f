package retention

import "sort"

// ServiceID identifies a monitored service by its owning host and
// description. Host names alone identify hosts.
type ServiceID struct {
	Host        string
	Description string
}

// Snapshot is the full set of retained state the scheduler knows about.
// Values are opaque scheduler-defined blobs; this package transports
// them without inspecting them. A Snapshot is produced fresh on every
// save or load pass and is never cached in-process.
type Snapshot struct {
	Hosts    map[string][]byte
	Services map[ServiceID][]byte
}

// NewSnapshot creates an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Hosts:    make(map[string][]byte),
		Services: make(map[ServiceID][]byte),
	}
}

// IdentitySet is the scheduler's current inventory of monitored-object
// identities, without their state. Load uses it to know which keys to
// fetch; Reconcile uses it to detect stale store entries.
type IdentitySet struct {
	hosts    map[string]struct{}
	services map[ServiceID]struct{}
}

// NewIdentitySet creates an empty identity set.
func NewIdentitySet() *IdentitySet {
	return &IdentitySet{
		hosts:    make(map[string]struct{}),
		services: make(map[ServiceID]struct{}),
	}
}

// AddHost records a known host identity.
func (s *IdentitySet) AddHost(name string) {
	s.hosts[name] = struct{}{}
}

// AddService records a known service identity.
func (s *IdentitySet) AddService(host, description string) {
	s.services[ServiceID{Host: host, Description: description}] = struct{}{}
}

// HasHost reports whether the host identity is known.
func (s *IdentitySet) HasHost(name string) bool {
	_, ok := s.hosts[name]
	return ok
}

// HasService reports whether the service identity is known.
func (s *IdentitySet) HasService(host, description string) bool {
	_, ok := s.services[ServiceID{Host: host, Description: description}]
	return ok
}

// Hosts returns the known host names in sorted order, so passes iterate
// deterministically.
func (s *IdentitySet) Hosts() []string {
	names := make([]string, 0, len(s.hosts))
	for name := range s.hosts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Services returns the known service identities sorted by host then
// description.
func (s *IdentitySet) Services() []ServiceID {
	ids := make([]ServiceID, 0, len(s.services))
	for id := range s.services {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Host != ids[j].Host {
			return ids[i].Host < ids[j].Host
		}
		return ids[i].Description < ids[j].Description
	})
	return ids
}

// Len reports the total number of known identities.
func (s *IdentitySet) Len() int {
	return len(s.hosts) + len(s.services)
}

// IdentitiesOf builds the identity set covered by a snapshot.
func IdentitiesOf(snap *Snapshot) *IdentitySet {
	set := NewIdentitySet()
	if snap == nil {
		return set
	}
	for name := range snap.Hosts {
		set.AddHost(name)
	}
	for id := range snap.Services {
		set.AddService(id.Host, id.Description)
	}
	return set
}
