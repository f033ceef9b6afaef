// Package mapview renders bus positions on a map surface provided by a mapping
// library that is loaded once per process.
package mapview

import "context"

type LatLng struct {
	Lat float64
	Lng float64
}

// Marker is one bus on the map. The library calls OnActivate when the user selects it.
type Marker struct {
	BusID      int
	Position   LatLng
	Label      string
	Title      string
	OnActivate func()
}

type MarkerHandle interface {
	Remove()
}

// Surface is one map instance bound to a mount point
type Surface interface {
	PlaceMarker(m Marker) MarkerHandle
	SetCenter(p LatLng)
}

// Library is a loaded mapping library
type Library interface {
	// Surface returns the map for mount, creating it on first use
	Surface(mount string, center LatLng, zoom int) (Surface, error)
}

// Loader loads the mapping library. It is called at most once per successful load.
type Loader func(ctx context.Context) (Library, error)
