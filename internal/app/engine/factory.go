package engine

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/spinbox/internal/app/playback"
	"github.com/osa030/spinbox/internal/infra/bridge"
	"github.com/osa030/spinbox/internal/infra/config"
)

// Set is the group of configured backends. It routes device reports to the
// backend they belong to.
type Set struct {
	backends []Backend
}

// NewSetFromConfig creates the backends listed in the configuration.
func NewSetFromConfig(cfg *config.Config, device Device) (*Set, error) {
	if len(cfg.Backends) == 0 {
		return nil, errors.New("no backends configured")
	}

	var backends []Backend
	for i, bcfg := range cfg.Backends {
		var backend Backend
		var err error
		zlog.Debug().Msgf("creating backend: index=%d type=%s settings=%+v", i+1, bcfg.Type, bcfg.Settings)
		switch bcfg.Type {
		case NativeName:
			backend, err = NewNative(device, bcfg.Settings)

		case YouTubeName:
			backend, err = NewYouTube(device, bcfg.Settings)

		default:
			return nil, errors.Newf("unsupported backend type: %s (backend index %d)", bcfg.Type, i)
		}

		if err != nil {
			return nil, errors.Wrapf(err, "failed to create backend (index %d, type %s)", i, bcfg.Type)
		}

		backends = append(backends, backend)
		zlog.Info().Msgf("registered backend: index=%d type=%s kinds=%v", i+1, bcfg.Type, backend.Kinds())
	}

	return NewSet(backends...), nil
}

// NewSet groups already created backends.
func NewSet(backends ...Backend) *Set {
	return &Set{backends: backends}
}

// Engines returns the backends as playback engines.
func (s *Set) Engines() []playback.Engine {
	engines := make([]playback.Engine, len(s.backends))
	for i, b := range s.backends {
		engines[i] = b
	}
	return engines
}

// Dispatch hands msg to the first backend that consumes it.
func (s *Set) Dispatch(msg bridge.Message) bool {
	for _, b := range s.backends {
		if b.HandleMessage(msg) {
			return true
		}
	}
	return false
}
