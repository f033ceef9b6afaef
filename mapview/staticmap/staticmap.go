// Package staticmap is a mapview library backed by the Google Static Maps API. Each
// surface renders as a static image URL and as a text table of its markers.
package staticmap

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/kiddiebus/kiddiebus-client/internal/config"
	"github.com/kiddiebus/kiddiebus-client/internal/errors"
	"github.com/kiddiebus/kiddiebus-client/mapview"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

const (
	DefaultEndpoint = "https://maps.googleapis.com/maps/api/staticmap"
	defaultSize     = "640x400"
	probeTimeout    = 5 * time.Second
)

type Loader struct {
	apiKey     string
	probeURL   string
	endpoint   string
	httpClient *http.Client
}

type LoaderOption func(*Loader)

func WithHTTPClient(hc *http.Client) LoaderOption {
	return func(l *Loader) {
		l.httpClient = hc
	}
}

func WithEndpoint(endpoint string) LoaderOption {
	return func(l *Loader) {
		l.endpoint = endpoint
	}
}

func NewLoader(cfg config.MapConfig, options ...LoaderOption) *Loader {
	l := &Loader{
		apiKey:     cfg.GetMapsAPIKey(),
		probeURL:   cfg.GetMapsProbeURL(),
		endpoint:   DefaultEndpoint,
		httpClient: &http.Client{Timeout: probeTimeout},
	}
	for _, opt := range options {
		opt(l)
	}
	return l
}

// Load implements mapview.Loader. It fails without an API key and, when a probe URL
// is configured, when the provider cannot be reached.
func (l *Loader) Load(ctx context.Context) (mapview.Library, error) {
	if l.apiKey == "" {
		return nil, fmt.Errorf("%w: maps API key not configured", errors.ErrMapUnavailable)
	}
	if l.probeURL != "" {
		if err := l.probe(ctx); err != nil {
			return nil, err
		}
	}
	return &Library{
		apiKey:   l.apiKey,
		endpoint: l.endpoint,
		surfaces: make(map[string]*Surface),
	}, nil
}

func (l *Loader) probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.probeURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", errors.ErrMapUnavailable, err)
	}
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: probing %s: %w", errors.ErrMapUnavailable, l.probeURL, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: probe returned status %d", errors.ErrMapUnavailable, resp.StatusCode)
	}
	return nil
}

// Library holds one Surface per mount point
type Library struct {
	apiKey   string
	endpoint string

	mu       sync.Mutex
	surfaces map[string]*Surface
}

var _ mapview.Library = (*Library)(nil)

func (l *Library) Surface(mount string, center mapview.LatLng, zoom int) (mapview.Surface, error) {
	s, err := l.Mount(mount, center, zoom)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Mount is Surface with the concrete type
func (l *Library) Mount(mount string, center mapview.LatLng, zoom int) (*Surface, error) {
	if mount == "" {
		return nil, fmt.Errorf("staticmap: mount point is required")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.surfaces[mount]; ok {
		return s, nil
	}
	s := &Surface{
		library: l,
		mount:   mount,
		center:  center,
		zoom:    zoom,
		markers: make(map[int]*marker),
	}
	l.surfaces[mount] = s
	return s, nil
}

type marker struct {
	id      int
	surface *Surface
	mapview.Marker
}

func (m *marker) Remove() {
	m.surface.mu.Lock()
	defer m.surface.mu.Unlock()
	delete(m.surface.markers, m.id)
}

type Surface struct {
	library *Library
	mount   string

	mu      sync.RWMutex
	center  mapview.LatLng
	zoom    int
	seq     int
	markers map[int]*marker
}

var _ mapview.Surface = (*Surface)(nil)

func (s *Surface) PlaceMarker(m mapview.Marker) mapview.MarkerHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	mk := &marker{id: s.seq, surface: s, Marker: m}
	s.markers[mk.id] = mk
	return mk
}

func (s *Surface) SetCenter(p mapview.LatLng) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.center = p
}

func (s *Surface) Center() mapview.LatLng {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.center
}

// Markers returns the placed markers in placement order
func (s *Surface) Markers() []mapview.Marker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.markersLocked()
}

func (s *Surface) markersLocked() []mapview.Marker {
	ids := make([]int, 0, len(s.markers))
	for id := range s.markers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]mapview.Marker, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.markers[id].Marker)
	}
	return out
}

// Activate selects the marker for busID, as a click would
func (s *Surface) Activate(busID int) bool {
	var fn func()
	s.mu.RLock()
	for _, m := range s.markers {
		if m.BusID == busID {
			fn = m.OnActivate
			break
		}
	}
	s.mu.RUnlock()
	if fn == nil {
		return false
	}
	fn()
	return true
}

func formatLatLng(p mapview.LatLng) string {
	return strconv.FormatFloat(p.Lat, 'f', 6, 64) + "," + strconv.FormatFloat(p.Lng, 'f', 6, 64)
}

// URL is the static map image for the surface's current state
func (s *Surface) URL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := url.Values{}
	q.Set("center", formatLatLng(s.center))
	q.Set("zoom", strconv.Itoa(s.zoom))
	q.Set("size", defaultSize)
	for _, m := range s.markersLocked() {
		q.Add("markers", "color:yellow|"+formatLatLng(m.Position))
	}
	q.Set("key", s.library.apiKey)
	return s.library.endpoint + "?" + q.Encode()
}

// Render writes the markers as a table
func (s *Surface) Render(w io.Writer) error {
	markers := s.Markers()

	rows := make([][]string, 0, len(markers))
	for _, m := range markers {
		rows = append(rows, []string{
			strconv.Itoa(m.BusID),
			m.Label,
			strconv.FormatFloat(m.Position.Lat, 'f', 5, 64),
			strconv.FormatFloat(m.Position.Lng, 'f', 5, 64),
			m.Title,
		})
	}

	table := tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoWrap: tw.WrapNone},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoFormat: tw.On},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Separators: tw.Separators{ShowHeader: tw.Off},
			},
		}),
	)
	table.Header([]string{"Bus", "Registration", "Latitude", "Longitude", "Details"})
	if err := table.Bulk(rows); err != nil {
		return fmt.Errorf("staticmap: rendering %s: %w", s.mount, err)
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("staticmap: rendering %s: %w", s.mount, err)
	}
	return nil
}
