package config

type MapConfig interface {
	GetMapsAPIKey() string
	GetMapsProbeURL() string
	GetDefaultCenter() (lat, lng float64)
	GetDefaultZoom() int
}

type Maps struct {
	APIKey    string  `env:"GOOGLE_MAPS_API_KEY"`
	ProbeURL  string  `env:"MAPS_PROBE_URL"`
	CenterLat float64 `env:"MAP_CENTER_LAT" envDefault:"18.0426"`
	CenterLng float64 `env:"MAP_CENTER_LNG" envDefault:"-77.5054"`
	Zoom      int     `env:"MAP_ZOOM" envDefault:"14"`
}

var _ MapConfig = Maps{}

func (m Maps) GetMapsAPIKey() string {
	return m.APIKey
}

// GetMapsProbeURL is fetched once while the map library loads. Empty skips the probe.
func (m Maps) GetMapsProbeURL() string {
	return m.ProbeURL
}

// GetDefaultCenter defaults to Mandeville, Jamaica
func (m Maps) GetDefaultCenter() (lat, lng float64) {
	return m.CenterLat, m.CenterLng
}

func (m Maps) GetDefaultZoom() int {
	return m.Zoom
}
