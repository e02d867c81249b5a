package docgen

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/mcncl/enphase-api/internal/errors"
	"github.com/mcncl/enphase-api/internal/gateway"
	"github.com/mcncl/enphase-api/internal/store"
)

// Fetch asks for the response of one example.
type Fetch struct {
	Endpoint string
	Example  string
	gateway.Request
}

// SampleSource supplies example responses.
type SampleSource interface {
	Sample(ctx context.Context, f Fetch) (gateway.Sample, error)
}

// Caller performs gateway calls.
type Caller interface {
	Call(ctx context.Context, r gateway.Request) (gateway.Sample, error)
}

// GatewaySource fetches every sample live.
type GatewaySource struct {
	Gateway Caller
	Log     logrus.FieldLogger
}

// Sample implements SampleSource.
func (s GatewaySource) Sample(ctx context.Context, f Fetch) (gateway.Sample, error) {
	if s.Log != nil {
		s.Log.WithFields(logrus.Fields{"endpoint": f.Endpoint, "example": f.Example}).
			Infof("Requesting example '%s' for '%s'.", f.Example, f.Endpoint)
	}
	return s.Gateway.Call(ctx, f.Request)
}

// CachedSource serves samples from a store, fetching and storing those it
// does not have yet. With no Next source a miss is ErrNoSampleSource.
type CachedSource struct {
	Store *store.Store
	Next  SampleSource
	// Refresh skips the lookup and fetches again.
	Refresh bool
	Log     logrus.FieldLogger
}

func (s CachedSource) key(f Fetch) store.SampleKey {
	return store.SampleKey{Endpoint: f.Endpoint, Example: f.Example, Target: f.Method + " " + f.Path}
}

// Sample implements SampleSource.
func (s CachedSource) Sample(ctx context.Context, f Fetch) (gateway.Sample, error) {
	key := s.key(f)

	if !s.Refresh {
		cached, found, err := s.Store.LoadSample(ctx, key)
		if err != nil {
			return gateway.Sample{}, errors.NewFetchError("reading sample cache", err)
		}
		if found && cached.Raw == f.Raw {
			if s.Log != nil {
				s.Log.WithFields(logrus.Fields{"endpoint": f.Endpoint, "example": f.Example}).
					Debugf("Using cached response from %s", cached.FetchedAt.Format("2006-01-02 15:04:05"))
			}
			return gateway.Sample{Body: cached.Body, Raw: cached.Raw}, nil
		}
	}

	if s.Next == nil {
		return gateway.Sample{}, errors.NewFetchError("no cached response for "+f.Path, errors.ErrNoSampleSource)
	}

	sample, err := s.Next.Sample(ctx, f)
	if err != nil {
		return gateway.Sample{}, err
	}
	if err := s.Store.SaveSample(ctx, key, store.CachedSample{Body: sample.Body, Raw: sample.Raw}); err != nil {
		return gateway.Sample{}, errors.NewFetchError("writing sample cache", err)
	}
	return sample, nil
}
