package mapview

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/kiddiebus/kiddiebus-client/fleet"
	"github.com/kiddiebus/kiddiebus-client/internal/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Default map position: Mandeville, Jamaica
var DefaultCenter = LatLng{Lat: 18.0426, Lng: -77.5054}

const DefaultZoom = 14

type View int

const (
	Loading     View = iota // library not loaded yet
	MapView                 // surface showing markers
	NoRoute                 // selected student has no route
	Unavailable             // library failed to load
)

func (v View) String() string {
	switch v {
	case Loading:
		return "loading"
	case MapView:
		return "map"
	case NoRoute:
		return "no-route"
	case Unavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Renderer keeps the markers on one mount point in line with the latest snapshots.
// Every Update replaces the whole marker set.
type Renderer struct {
	resource *Resource
	mount    string
	center   LatLng
	zoom     int
	onSelect func(busID int)
	logger   zerolog.Logger

	mu      sync.Mutex
	view    View
	surface Surface
	markers []MarkerHandle
	shown   []placed         // last rendered set, for recentering
	pending []fleet.Snapshot // latest update received before the surface existed
}

type RendererOption func(*Renderer)

func WithCenter(lat, lng float64) RendererOption {
	return func(r *Renderer) {
		r.center = LatLng{Lat: lat, Lng: lng}
	}
}

func WithZoom(zoom int) RendererOption {
	return func(r *Renderer) {
		r.zoom = zoom
	}
}

// WithSelectionHandler is called with the bus ID of an activated marker
func WithSelectionHandler(fn func(busID int)) RendererOption {
	return func(r *Renderer) {
		r.onSelect = fn
	}
}

func WithLogger(l zerolog.Logger) RendererOption {
	return func(r *Renderer) {
		r.logger = l
	}
}

func NewRenderer(resource *Resource, mount string, options ...RendererOption) *Renderer {
	r := &Renderer{
		resource: resource,
		mount:    mount,
		center:   DefaultCenter,
		zoom:     DefaultZoom,
		onSelect: func(int) {},
		logger:   log.Logger,
		view:     Loading,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Mount waits for the library and creates the surface. Until it returns the view is
// Loading. Snapshots passed to Update in the meantime are rendered once mounted.
func (r *Renderer) Mount(ctx context.Context) error {
	lib, err := r.resource.Acquire(ctx)
	if err != nil {
		if ctx.Err() == nil {
			r.setView(Unavailable)
		}
		return fmt.Errorf("%w: %w", errors.ErrMapUnavailable, err)
	}

	surface, err := lib.Surface(r.mount, r.center, r.zoom)
	if err != nil {
		r.setView(Unavailable)
		return fmt.Errorf("%w: creating surface %q: %w", errors.ErrMapUnavailable, r.mount, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.surface = surface
	if r.view == Loading || r.view == Unavailable {
		r.view = MapView
	}
	if r.pending != nil {
		r.reconcileLocked(r.pending)
		r.pending = nil
	}
	return nil
}

func (r *Renderer) setView(v View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.view = v
}

func (r *Renderer) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.view
}

// Markers is the number of markers currently placed
func (r *Renderer) Markers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.markers)
}

// Update replaces the marker set with snaps. Snapshots without a position are
// skipped; an empty result clears the map.
func (r *Renderer) Update(snaps []fleet.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.surface == nil {
		r.pending = slices.Clone(snaps)
		return
	}
	if r.view == NoRoute {
		r.view = MapView
	}
	r.reconcileLocked(snaps)
}

// ShowNoRoute clears the markers and shows the no-route placeholder
func (r *Renderer) ShowNoRoute() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearLocked()
	r.shown = nil
	r.pending = nil
	r.view = NoRoute
}

func (r *Renderer) clearLocked() {
	for _, m := range r.markers {
		m.Remove()
	}
	r.markers = r.markers[:0]
}

func (r *Renderer) reconcileLocked(snaps []fleet.Snapshot) {
	r.clearLocked()

	var (
		shown []placed
		first *LatLng
	)
	for _, s := range snaps {
		if !s.HasPosition() {
			continue
		}
		pos := LatLng{Lat: *s.Latitude, Lng: *s.Longitude}
		if first == nil {
			first = &pos
		}
		busID := s.BusID
		r.markers = append(r.markers, r.surface.PlaceMarker(Marker{
			BusID:      busID,
			Position:   pos,
			Label:      s.Label,
			Title:      title(s),
			OnActivate: func() { r.onSelect(busID) },
		}))
		shown = append(shown, placed{busID: busID, pos: pos})
	}

	if first != nil && !slices.Equal(shown, r.shown) {
		r.surface.SetCenter(*first)
	}
	r.shown = shown
	r.logger.Debug().Str("mount", r.mount).Int("markers", len(r.markers)).Msg("Markers updated")
}

type placed struct {
	busID int
	pos   LatLng
}

func title(s fleet.Snapshot) string {
	if s.UpdatedAt == nil {
		return s.Label
	}
	return fmt.Sprintf("%s (updated %s)", s.Label, s.UpdatedAt.Format("15:04:05"))
}
