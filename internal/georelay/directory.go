// Package georelay maintains a geospatial catalog of relay endpoints and
// ranks them by proximity to a channel's geohash. The catalog refreshes from
// a remote CSV at most once per day and falls back to a cached or hard-coded
// list whenever the network or the data is bad.
package georelay

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mmcloughlin/geohash"
)

const (
	remoteURL     = "https://raw.githubusercontent.com/permissionlesstech/georelays/refs/heads/main/nostr_relays.csv"
	cacheFileName = "nostr_relays.csv"

	fetchInterval = 24 * time.Hour
	fetchTimeout  = 15 * time.Second

	// DefaultRelayCount is how many endpoints a channel join asks for.
	DefaultRelayCount = 5
)

// RelayInfo is one catalog entry: a relay host (no scheme) and its location.
type RelayInfo struct {
	URL       string
	Latitude  float64
	Longitude float64
}

// Directory owns the in-memory relay catalog, the last-fetch marker, and the
// on-disk CSV cache. Reads and the background refresh may run concurrently.
type Directory struct {
	mu        sync.RWMutex
	relays    []RelayInfo
	lastFetch time.Time

	cachePath string
	client    *http.Client
	now       func() time.Time
}

// New creates a directory caching under the platform cache dir.
func New() (*Directory, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return nil, fmt.Errorf("cannot determine user cache dir: %w", err)
	}
	return newDirectory(filepath.Join(cacheDir, "geochat", cacheFileName)), nil
}

func newDirectory(cachePath string) *Directory {
	return &Directory{
		cachePath: cachePath,
		client:    &http.Client{Timeout: fetchTimeout},
		now:       time.Now,
	}
}

// Initialize seeds the catalog from the disk cache, or from the fixed
// fallback set when no usable cache exists, then attempts one remote
// refresh. Failures degrade; they are never fatal.
func (d *Directory) Initialize(ctx context.Context) {
	relays, err := d.loadCache()
	if err != nil {
		relays = fallbackRelays()
	}
	d.mu.Lock()
	d.relays = relays
	d.mu.Unlock()

	d.FetchAndUpdate(ctx)
}

// FetchAndUpdate refreshes the catalog from the remote CSV. It is a no-op
// inside the 24-hour window since the last attempt; a failed attempt keeps
// the current catalog and still waits out the full interval before retrying.
func (d *Directory) FetchAndUpdate(ctx context.Context) {
	d.mu.Lock()
	if !d.lastFetch.IsZero() && d.now().Sub(d.lastFetch) < fetchInterval {
		d.mu.Unlock()
		return
	}
	d.lastFetch = d.now()
	d.mu.Unlock()

	relays, err := d.fetchRemote(ctx)
	if err != nil {
		log.Printf("Warning: failed to fetch georelays: %v", err)
		return
	}

	d.mu.Lock()
	d.relays = relays
	d.mu.Unlock()

	if err := d.saveCache(relays); err != nil {
		log.Printf("Warning: failed to save relay cache: %v", err)
	}
}

func (d *Directory) fetchRemote(ctx context.Context) ([]RelayInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, remoteURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch relays: %s", resp.Status)
	}
	return parseCSV(resp.Body)
}

// parseCSV reads url,lat,lon rows tolerantly: the header row and any row
// that is short or non-numeric is skipped rather than failing the whole set.
func parseCSV(r io.Reader) ([]RelayInfo, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	lines, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}

	var relays []RelayInfo
	for i, line := range lines {
		if len(line) < 3 {
			continue
		}
		if i == 0 && strings.Contains(strings.ToLower(line[0]), "relay") {
			continue
		}
		lat, err1 := strconv.ParseFloat(strings.TrimSpace(line[1]), 64)
		lon, err2 := strconv.ParseFloat(strings.TrimSpace(line[2]), 64)
		if err1 != nil || err2 != nil {
			continue
		}
		host := strings.TrimSpace(line[0])
		host = strings.TrimPrefix(host, "wss://")
		host = strings.TrimPrefix(host, "ws://")
		relays = append(relays, RelayInfo{URL: host, Latitude: lat, Longitude: lon})
	}
	return relays, nil
}

func (d *Directory) loadCache() ([]RelayInfo, error) {
	f, err := os.Open(d.cachePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	relays, err := parseCSV(f)
	if err != nil {
		return nil, err
	}
	if len(relays) == 0 {
		return nil, fmt.Errorf("relay cache %s is empty", d.cachePath)
	}
	return relays, nil
}

func (d *Directory) saveCache(relays []RelayInfo) error {
	if err := os.MkdirAll(filepath.Dir(d.cachePath), 0o755); err != nil {
		return err
	}
	var b strings.Builder
	b.WriteString("Relay URL,Latitude,Longitude\n")
	for _, r := range relays {
		fmt.Fprintf(&b, "%s,%v,%v\n", r.URL, r.Latitude, r.Longitude)
	}
	return os.WriteFile(d.cachePath, []byte(b.String()), 0o644)
}

// ClosestRelaysForGeohash returns up to count connection URLs nearest to the
// geohash's centroid. An undecodable geohash falls back to the fixed set.
func (d *Directory) ClosestRelaysForGeohash(gh string, count int) []string {
	if count <= 0 {
		count = DefaultRelayCount
	}
	if geohash.Validate(gh) != nil {
		return relayURLs(fallbackRelays(), count)
	}
	lat, lon := geohash.DecodeCenter(gh)
	return d.ClosestRelaysToCoords(lat, lon, count)
}

// ClosestRelaysToCoords ranks the catalog by great-circle distance from the
// query point and returns the nearest count entries as connection URLs.
func (d *Directory) ClosestRelaysToCoords(lat, lon float64, count int) []string {
	d.mu.RLock()
	relays := make([]RelayInfo, len(d.relays))
	copy(relays, d.relays)
	d.mu.RUnlock()

	if len(relays) == 0 {
		return relayURLs(fallbackRelays(), count)
	}

	type ranked struct {
		relay    RelayInfo
		distance float64
	}
	pairs := make([]ranked, len(relays))
	for i, r := range relays {
		pairs[i] = ranked{relay: r, distance: haversine(lat, lon, r.Latitude, r.Longitude)}
	}
	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].distance < pairs[j].distance
	})

	if count > len(pairs) {
		count = len(pairs)
	}
	out := make([]string, count)
	for i := 0; i < count; i++ {
		out[i] = "wss://" + pairs[i].relay.URL
	}
	return out
}

// RelayCount reports the catalog size.
func (d *Directory) RelayCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.relays)
}

func relayURLs(relays []RelayInfo, count int) []string {
	if count > len(relays) {
		count = len(relays)
	}
	out := make([]string, count)
	for i := 0; i < count; i++ {
		out[i] = "wss://" + relays[i].URL
	}
	return out
}

// fallbackRelays is the hard-coded seed set, with hand-pinned coordinates,
// used before any fetch succeeds or when a geohash cannot be decoded.
func fallbackRelays() []RelayInfo {
	return []RelayInfo{
		{URL: "relay.damus.io", Latitude: 37.7621, Longitude: -122.3971},
		{URL: "nos.lol", Latitude: 40.7128, Longitude: -74.0060},
		{URL: "relay.nostr.band", Latitude: 51.5074, Longitude: -0.1278},
		{URL: "nostr-pub.wellorder.net", Latitude: 45.5229, Longitude: -122.9898},
	}
}

// haversine is the great-circle distance in kilometers between two points.
func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const (
		radius = 6371.0 // Earth radius in kilometers
		deg    = math.Pi / 180
	)
	dLat := (lat2 - lat1) * deg
	dLon := (lon2 - lon1) * deg
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*deg)*math.Cos(lat2*deg)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * radius * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
