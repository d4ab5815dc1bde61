package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Settings represents the application configuration persisted to disk.
type Settings struct {
	Server    ServerSettings   `json:"server"`
	Providers []ProviderConfig `json:"providers"`
	Search    SearchSettings   `json:"search"`
	Scoring   ScoringSettings  `json:"scoring"`
	Cache     CacheSettings    `json:"cache"`
	Breaker   BreakerSettings  `json:"breaker"`
	Runtime   RuntimeSettings  `json:"runtime"`
	Metadata  MetadataSettings `json:"metadata"`
	Log       LogConfig        `json:"log"`
}

type ServerSettings struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// ProviderConfig describes one registered subtitle source. Registration order
// in this slice doubles as the tie-break priority between equal-score
// candidates, so operators control provider precedence by ordering entries.
type ProviderConfig struct {
	Name          string `json:"name"`
	Type          string `json:"type"` // "opensubtitles", "yavka", "subsunacs"
	URL           string `json:"url,omitempty"`
	APIKey        string `json:"apiKey,omitempty"`
	Enabled       bool   `json:"enabled"`
	TimeoutMs     int    `json:"timeoutMs,omitempty"`     // overrides Search.ProviderTimeoutMs
	MinIntervalMs int    `json:"minIntervalMs,omitempty"` // gentle rate limit between live calls
}

type SearchSettings struct {
	PerProviderCap    int `json:"perProviderCap"`
	GlobalCap         int `json:"globalCap"`
	ConcurrencyLimit  int `json:"concurrencyLimit"`
	ProviderTimeoutMs int `json:"providerTimeoutMs"`
	RequestTimeoutMs  int `json:"requestTimeoutMs"`
}

// ScoringSettings controls candidate ranking. Weights apply only on a match;
// a missing or mismatched attribute contributes nothing unless the
// corresponding strict requirement is enabled, in which case a mismatch
// eliminates the candidate.
type ScoringSettings struct {
	SmartMatch bool           `json:"smartMatch"`
	Strict     StrictSettings `json:"strict"`
	Weights    WeightSettings `json:"weights"`
}

type StrictSettings struct {
	Mode              bool `json:"mode"`
	RequireSource     bool `json:"requireSource"`
	RequireResolution bool `json:"requireResolution"`
	RequireCodec      bool `json:"requireCodec"`
	RequireGroup      bool `json:"requireGroup"`
	RequireFPS        bool `json:"requireFps"`
}

type WeightSettings struct {
	YearExact  float64 `json:"yearExact"`
	YearNear   float64 `json:"yearNear"`
	YearInInfo float64 `json:"yearInInfo"`
	FPSExact   float64 `json:"fpsExact"`
	FPSClose   float64 `json:"fpsClose"`
	FPSLoose   float64 `json:"fpsLoose"`
	Resolution float64 `json:"resolution"`
	Source     float64 `json:"source"`
	Codec      float64 `json:"codec"`
	Group      float64 `json:"group"`
	Edition    float64 `json:"edition"`
	Downloads  float64 `json:"downloads"`
}

type CacheSettings struct {
	SuccessTTLSeconds  int `json:"successTtlSeconds"`
	FailureTTLSeconds  int `json:"failureTtlSeconds"`
	ResolvedTTLSeconds int `json:"resolvedTtlSeconds"`
	MaxEntries         int `json:"maxEntries"`
}

type BreakerSettings struct {
	FailureThreshold int `json:"failureThreshold"`
	MuteSeconds      int `json:"muteSeconds"`
}

type RuntimeSettings struct {
	// DriftTolerance is the maximum relative runtime drift before a candidate
	// is dropped instead of rescaled.
	DriftTolerance float64 `json:"driftTolerance"`
}

type MetadataSettings struct {
	BaseURLs   []string `json:"baseUrls,omitempty"`
	TTLSeconds int      `json:"ttlSeconds"`
}

// LogConfig represents logging configuration.
type LogConfig struct {
	File       string `json:"file"`
	MaxSize    int    `json:"maxSize"`
	MaxAge     int    `json:"maxAge"`
	MaxBackups int    `json:"maxBackups"`
	Compress   bool   `json:"compress"`
}

// Manager loads and persists Settings with defaults applied. The last loaded
// or saved snapshot is kept in memory for cheap concurrent reads.
type Manager struct {
	path    string
	mu      sync.Mutex
	current Settings
}

// NewManager constructs a settings manager for the given file path.
func NewManager(path string) *Manager {
	return &Manager{path: path}
}

// Load reads settings from disk, creating the file with defaults when missing.
func (m *Manager) Load() (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			settings := defaultSettings()
			if err := m.saveLocked(settings); err != nil {
				return Settings{}, err
			}
			m.current = settings
			return settings, nil
		}
		return Settings{}, err
	}

	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return Settings{}, err
	}
	applyDefaults(&settings)
	m.current = settings
	return settings, nil
}

// Get returns the current in-memory snapshot.
func (m *Manager) Get() Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Update applies defaults, persists and swaps in the new snapshot.
func (m *Manager) Update(settings Settings) error {
	applyDefaults(&settings)
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.saveLocked(settings); err != nil {
		return err
	}
	m.current = settings
	return nil
}

// Save persists settings to disk atomically.
func (m *Manager) Save(settings Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.saveLocked(settings); err != nil {
		return err
	}
	m.current = settings
	return nil
}

func (m *Manager) saveLocked(settings Settings) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, m.path)
}

func defaultSettings() Settings {
	var s Settings
	applyDefaults(&s)
	s.Scoring.SmartMatch = true
	s.Providers = []ProviderConfig{
		{Name: "OpenSubtitles", Type: "opensubtitles", Enabled: true},
		{Name: "Yavka", Type: "yavka", Enabled: true},
		{Name: "Subsunacs", Type: "subsunacs", Enabled: true},
	}
	return s
}

func applyDefaults(s *Settings) {
	if s.Server.Host == "" {
		s.Server.Host = "0.0.0.0"
	}
	if s.Server.Port == 0 {
		s.Server.Port = 7777
	}
	if s.Search.PerProviderCap == 0 {
		s.Search.PerProviderCap = 3
	}
	if s.Search.GlobalCap == 0 {
		s.Search.GlobalCap = 12
	}
	if s.Search.ConcurrencyLimit == 0 {
		s.Search.ConcurrencyLimit = 5
	}
	if s.Search.ProviderTimeoutMs == 0 {
		s.Search.ProviderTimeoutMs = 12000
	}
	if s.Search.RequestTimeoutMs == 0 {
		s.Search.RequestTimeoutMs = 30000
	}
	applyWeightDefaults(&s.Scoring.Weights)
	if s.Cache.SuccessTTLSeconds == 0 {
		s.Cache.SuccessTTLSeconds = 1800
	}
	if s.Cache.FailureTTLSeconds == 0 {
		s.Cache.FailureTTLSeconds = 300
	}
	if s.Cache.ResolvedTTLSeconds == 0 {
		s.Cache.ResolvedTTLSeconds = 300
	}
	if s.Cache.MaxEntries == 0 {
		s.Cache.MaxEntries = 2048
	}
	if s.Breaker.FailureThreshold == 0 {
		s.Breaker.FailureThreshold = 4
	}
	if s.Breaker.MuteSeconds == 0 {
		s.Breaker.MuteSeconds = 120
	}
	if s.Runtime.DriftTolerance == 0 {
		s.Runtime.DriftTolerance = 0.15
	}
	if s.Metadata.TTLSeconds == 0 {
		s.Metadata.TTLSeconds = 3600
	}
	if len(s.Metadata.BaseURLs) == 0 {
		s.Metadata.BaseURLs = []string{"https://v3-cinemeta.strem.io"}
	}
	if s.Log.MaxSize == 0 {
		s.Log.MaxSize = 10
	}
	if s.Log.MaxBackups == 0 {
		s.Log.MaxBackups = 3
	}
	if s.Log.MaxAge == 0 {
		s.Log.MaxAge = 14
	}
}

func applyWeightDefaults(w *WeightSettings) {
	if w.YearExact == 0 {
		w.YearExact = 80
	}
	if w.YearNear == 0 {
		w.YearNear = 12
	}
	if w.YearInInfo == 0 {
		w.YearInInfo = 25
	}
	if w.FPSExact == 0 {
		w.FPSExact = 40
	}
	if w.FPSClose == 0 {
		w.FPSClose = 22
	}
	if w.FPSLoose == 0 {
		w.FPSLoose = 10
	}
	if w.Resolution == 0 {
		w.Resolution = 10
	}
	if w.Source == 0 {
		w.Source = 6
	}
	if w.Codec == 0 {
		w.Codec = 5
	}
	if w.Group == 0 {
		w.Group = 16
	}
	if w.Edition == 0 {
		w.Edition = 8
	}
	if w.Downloads == 0 {
		w.Downloads = 5
	}
}
