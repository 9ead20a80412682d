package resolve

import (
	"context"

	"go.uber.org/zap"

	"github.com/voyagekit/geotally/internal/cache"
	"github.com/voyagekit/geotally/internal/geocode"
	"github.com/voyagekit/geotally/internal/model"
)

// strategy is one way of turning extracted features into a location. run
// reports whether the strategy applied at all; an applicable strategy that
// found nothing still caches its negative outcome under its own key.
type strategy struct {
	name string
	run  func(ctx context.Context, f model.ExtractedFeatures) model.ResolvedLocation
}

// Resolver evaluates the extraction strategies in fixed priority order
// (coordinates, then hex place id, then free-text name), consulting the
// cache store before any provider call and writing every outcome back.
type Resolver struct {
	geo        geocode.Geocoder
	store      *cache.Store
	log        *zap.Logger
	strategies []strategy
}

// New creates a resolver over the given provider client and cache store
func New(geo geocode.Geocoder, store *cache.Store, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Resolver{geo: geo, store: store, log: log}
	r.strategies = []strategy{
		{name: "coordinates", run: r.byCoordinates},
		{name: "hex_place_id", run: r.byHexPlaceID},
		{name: "place_name", run: r.byPlaceName},
	}
	return r
}

// Resolve returns the location for one row's features. Each strategy is
// attempted only while no country has been found. When every strategy comes
// up empty the result is an empty location; the row is not cached as a whole
// (each attempted key already got its own entry).
func (r *Resolver) Resolve(ctx context.Context, f model.ExtractedFeatures) model.ResolvedLocation {
	for _, s := range r.strategies {
		loc := s.run(ctx, f)
		if loc.HasCountry() {
			r.log.Debug("resolved",
				zap.String("strategy", s.name),
				zap.String("country", *loc.Country))
			return loc
		}
	}
	return model.ResolvedLocation{}
}

// byCoordinates resolves via reverse geocoding, keyed in the shared namespace
func (r *Resolver) byCoordinates(ctx context.Context, f model.ExtractedFeatures) model.ResolvedLocation {
	if f.Coords == nil {
		return model.ResolvedLocation{}
	}
	key := cache.CoordKey(f.Coords.Lat, f.Coords.Lon)
	if e, found := r.store.Shared.Get(key); found {
		return e.Location()
	}
	loc, ok := r.lookup(ctx, key, func() (model.ResolvedLocation, error) {
		return r.geo.ReverseGeocode(ctx, f.Coords.Lat, f.Coords.Lon)
	})
	if !ok {
		return model.ResolvedLocation{}
	}
	r.store.Shared.Put(key, cache.EntryOf(loc))
	return loc
}

// byHexPlaceID resolves via the place-details endpoint, keyed in the shared
// namespace. A hex id whose numeric conversion fails is cached as a failed
// lookup without calling out.
func (r *Resolver) byHexPlaceID(ctx context.Context, f model.ExtractedFeatures) model.ResolvedLocation {
	if f.HexPlaceID == "" {
		return model.ResolvedLocation{}
	}
	key := cache.HexKey(f.HexPlaceID)
	if e, found := r.store.Shared.Get(key); found {
		return e.Location()
	}
	cid, ok := geocode.CIDFromHex(f.HexPlaceID)
	if !ok {
		r.store.Shared.Put(key, cache.Entry{})
		return model.ResolvedLocation{}
	}
	loc, ok := r.lookup(ctx, key, func() (model.ResolvedLocation, error) {
		return r.geo.PlaceDetails(ctx, cid)
	})
	if !ok {
		return model.ResolvedLocation{}
	}
	r.store.Shared.Put(key, cache.EntryOf(loc))
	return loc
}

// byPlaceName resolves via forward geocoding, keyed in the per-source
// namespace. Skipped when the URL carries a hex place id: a present but
// unresolved hex id is evidence the free-text name may point at the wrong
// place, so no answer beats a wrong one.
func (r *Resolver) byPlaceName(ctx context.Context, f model.ExtractedFeatures) model.ResolvedLocation {
	name := cache.NameKey(f.PlaceName)
	if name == "" {
		return model.ResolvedLocation{}
	}
	if f.HexConflict {
		r.log.Debug("place name skipped, hex id indicates potential mismatch",
			zap.String("place_name", name))
		return model.ResolvedLocation{}
	}
	if e, found := r.store.PerSource.Get(name); found {
		return e.Location()
	}
	loc, ok := r.lookup(ctx, name, func() (model.ResolvedLocation, error) {
		return r.geo.GeocodeAddress(ctx, name)
	})
	if !ok {
		return model.ResolvedLocation{}
	}
	r.store.PerSource.Put(name, cache.EntryOf(loc))
	return loc
}

// lookup runs one provider call and normalizes failures to an empty
// location, which the caller caches as a negative entry. A cancelled run is
// the one exception: the in-flight row is abandoned uncached (second return
// false) so an interrupt never poisons the cache.
func (r *Resolver) lookup(ctx context.Context, key string, call func() (model.ResolvedLocation, error)) (model.ResolvedLocation, bool) {
	loc, err := call()
	if err != nil {
		if ctx.Err() != nil {
			return model.ResolvedLocation{}, false
		}
		r.log.Warn("provider lookup failed", zap.String("key", key), zap.Error(err))
		return model.ResolvedLocation{}, true
	}
	return loc, true
}
