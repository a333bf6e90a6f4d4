package counters

import "sort"

// Names of the registered backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendRemote = "remote"
	BackendHLL    = "hll"
)

type constructor func(cfg Config) (Counters, error)

// backends is the closed set of available implementations.
var backends = map[string]constructor{
	BackendMemory: func(Config) (Counters, error) { return NewMemory(), nil },
	BackendRedis:  func(cfg Config) (Counters, error) { return NewRedis(cfg) },
	BackendRemote: func(cfg Config) (Counters, error) { return NewRemote(cfg) },
	BackendHLL:    func(Config) (Counters, error) { return NewHLL(), nil },
}

// Backends returns the sorted names of the registered backends.
func Backends() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns a new backend of the given name built from cfg. Every call
// returns a new instance owned by the caller.
func Get(name string, cfg Config) (Counters, error) {
	newFn, ok := backends[name]
	if !ok {
		return nil, &UnknownBackendError{Name: name, Supported: Backends()}
	}
	c, err := newFn(cfg)
	if err != nil {
		return nil, err
	}
	return c, nil
}
