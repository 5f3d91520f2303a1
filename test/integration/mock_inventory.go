package integration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"
)

// upstreamToken is the API token the harness configures and the fake
// upstream requires on every request.
const upstreamToken = "test-token"

// mockInventory is a stateful fake of the upstream DCIM inventory API. It
// serves the site and device endpoints the gateway client calls, keeps
// created resources in memory, records every request, and can be told to
// fail requests to drive the resilience machinery.
type mockInventory struct {
	t   *testing.T
	mux *http.ServeMux

	server *httptest.Server

	mu            sync.Mutex
	sites         map[int64]inventorySite
	devices       map[int64]inventoryDevice
	nextID        int64
	calls         []upstreamCall
	failRemaining int // -1 means fail every request
	failStatus    int
}

// upstreamCall records one request the fake upstream received.
type upstreamCall struct {
	Method string
	Path   string
	Query  string
}

// inventorySite is the fake upstream's storage row for a site. Only the
// fields the gateway reads or writes are modeled.
type inventorySite struct {
	ID              int64          `json:"id"`
	Name            string         `json:"name"`
	Slug            string         `json:"slug,omitempty"`
	Description     string         `json:"description,omitempty"`
	Status          string         `json:"status,omitempty"`
	Region          string         `json:"region,omitempty"`
	Tenant          *int64         `json:"tenant,omitempty"`
	Facility        string         `json:"facility,omitempty"`
	PhysicalAddress string         `json:"physical_address,omitempty"`
	ShippingAddress string         `json:"shipping_address,omitempty"`
	Latitude        *float64       `json:"latitude,omitempty"`
	Longitude       *float64       `json:"longitude,omitempty"`
	ContactName     string         `json:"contact_name,omitempty"`
	ContactPhone    string         `json:"contact_phone,omitempty"`
	ContactEmail    string         `json:"contact_email,omitempty"`
	Comments        string         `json:"comments,omitempty"`
	Tags            []string       `json:"tags,omitempty"`
	CustomFields    map[string]any `json:"custom_fields,omitempty"`
	Created         string         `json:"created,omitempty"`
	LastUpdated     string         `json:"last_updated,omitempty"`
}

type inventoryDevice struct {
	ID           int64          `json:"id"`
	Name         string         `json:"name"`
	DeviceType   string         `json:"device_type,omitempty"`
	Role         string         `json:"role,omitempty"`
	Site         *int64         `json:"site,omitempty"`
	Status       string         `json:"status,omitempty"`
	Tenant       *int64         `json:"tenant,omitempty"`
	Serial       string         `json:"serial,omitempty"`
	AssetTag     string         `json:"asset_tag,omitempty"`
	Comments     string         `json:"comments,omitempty"`
	Tags         []string       `json:"tags,omitempty"`
	CustomFields map[string]any `json:"custom_fields,omitempty"`
	Created      string         `json:"created,omitempty"`
	LastUpdated  string         `json:"last_updated,omitempty"`
}

// newMockInventory starts the fake upstream. The server is torn down when
// the test completes.
func newMockInventory(t *testing.T) *mockInventory {
	t.Helper()

	m := &mockInventory{
		t:       t,
		sites:   make(map[int64]inventorySite),
		devices: make(map[int64]inventoryDevice),
		nextID:  1,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/dcim/sites/{$}", m.handleSiteList)
	mux.HandleFunc("POST /api/dcim/sites/{$}", m.handleSiteCreate)
	mux.HandleFunc("GET /api/dcim/sites/{id}/{$}", m.handleSiteGet)
	mux.HandleFunc("PATCH /api/dcim/sites/{id}/{$}", m.handleSitePatch)
	mux.HandleFunc("DELETE /api/dcim/sites/{id}/{$}", m.handleSiteDelete)
	mux.HandleFunc("GET /api/dcim/devices/{$}", m.handleDeviceList)
	mux.HandleFunc("POST /api/dcim/devices/{$}", m.handleDeviceCreate)
	mux.HandleFunc("GET /api/dcim/devices/{id}/{$}", m.handleDeviceGet)
	mux.HandleFunc("PATCH /api/dcim/devices/{id}/{$}", m.handleDevicePatch)
	mux.HandleFunc("DELETE /api/dcim/devices/{id}/{$}", m.handleDeviceDelete)
	m.mux = mux

	m.server = httptest.NewServer(http.HandlerFunc(m.dispatch))
	t.Cleanup(m.server.Close)

	return m
}

// dispatch runs the common request path: record the call, apply failure
// injection, verify the token, then route.
func (m *mockInventory) dispatch(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.calls = append(m.calls, upstreamCall{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
	})
	fail := false
	status := m.failStatus
	if m.failRemaining < 0 {
		fail = true
	} else if m.failRemaining > 0 {
		fail = true
		m.failRemaining--
	}
	m.mu.Unlock()

	if fail {
		writeDetail(w, status, "injected failure")
		return
	}

	if r.Header.Get("Authorization") != "Token "+upstreamToken {
		writeDetail(w, http.StatusUnauthorized, "Invalid token.")
		return
	}

	m.mux.ServeHTTP(w, r)
}

// URL returns the fake upstream's base URL.
func (m *mockInventory) URL() string {
	return m.server.URL
}

// FailNext makes the next n requests fail with the given status before any
// routing or state change happens.
func (m *mockInventory) FailNext(n, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failRemaining = n
	m.failStatus = status
}

// FailAll makes every request fail with the given status until Restore.
func (m *mockInventory) FailAll(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failRemaining = -1
	m.failStatus = status
}

// Restore clears failure injection.
func (m *mockInventory) Restore() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failRemaining = 0
	m.failStatus = 0
}

// TotalCalls returns how many requests the upstream has received, including
// failed and rejected ones.
func (m *mockInventory) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// CallsTo counts requests by method and exact path.
func (m *mockInventory) CallsTo(method, path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method && c.Path == path {
			n++
		}
	}
	return n
}

// LastCall returns the most recent request, or false if none was received.
func (m *mockInventory) LastCall() (upstreamCall, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return upstreamCall{}, false
	}
	return m.calls[len(m.calls)-1], true
}

// SeedSite stores a site directly, bypassing the HTTP surface. A zero ID is
// assigned from the sequence. Returns the stored row.
func (m *mockInventory) SeedSite(site inventorySite) inventorySite {
	m.mu.Lock()
	defer m.mu.Unlock()
	if site.ID == 0 {
		site.ID = m.nextID
		m.nextID++
	} else if site.ID >= m.nextID {
		m.nextID = site.ID + 1
	}
	if site.Created == "" {
		site.Created = upstreamNow()
	}
	site.LastUpdated = upstreamNow()
	m.sites[site.ID] = site
	return site
}

// SeedDevice stores a device directly.
func (m *mockInventory) SeedDevice(device inventoryDevice) inventoryDevice {
	m.mu.Lock()
	defer m.mu.Unlock()
	if device.ID == 0 {
		device.ID = m.nextID
		m.nextID++
	} else if device.ID >= m.nextID {
		m.nextID = device.ID + 1
	}
	if device.Created == "" {
		device.Created = upstreamNow()
	}
	device.LastUpdated = upstreamNow()
	m.devices[device.ID] = device
	return device
}

// Site reads a stored site back.
func (m *mockInventory) Site(id int64) (inventorySite, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sites[id]
	return s, ok
}

// SiteCount returns the number of stored sites.
func (m *mockInventory) SiteCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sites)
}

// --- site handlers ---

func (m *mockInventory) handleSiteList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	m.mu.Lock()
	var matched []inventorySite
	for _, s := range m.sites {
		if v := q.Get("tenant_id"); v != "" {
			want, err := strconv.ParseInt(v, 10, 64)
			if err != nil || s.Tenant == nil || *s.Tenant != want {
				continue
			}
		}
		matched = append(matched, s)
	}
	m.mu.Unlock()

	sortByID(matched, func(s inventorySite) int64 { return s.ID })
	total := len(matched)
	matched = applyPaging(matched, q)

	writeJSON(w, http.StatusOK, map[string]any{
		"count":    total,
		"next":     nil,
		"previous": nil,
		"results":  matched,
	})
}

func (m *mockInventory) handleSiteCreate(w http.ResponseWriter, r *http.Request) {
	var site inventorySite
	if err := json.NewDecoder(r.Body).Decode(&site); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if site.Name == "" {
		writeDetail(w, http.StatusBadRequest, "name is required")
		return
	}

	m.mu.Lock()
	site.ID = m.nextID
	m.nextID++
	site.Created = upstreamNow()
	site.LastUpdated = site.Created
	m.sites[site.ID] = site
	m.mu.Unlock()

	writeJSON(w, http.StatusCreated, site)
}

func (m *mockInventory) handleSiteGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}

	m.mu.Lock()
	site, found := m.sites[id]
	m.mu.Unlock()

	if !found {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}
	writeJSON(w, http.StatusOK, site)
}

func (m *mockInventory) handleSitePatch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}

	m.mu.Lock()
	site, found := m.sites[id]
	if !found {
		m.mu.Unlock()
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}
	// Decoding into the stored copy applies partial-update semantics:
	// absent fields keep their values.
	if err := json.NewDecoder(r.Body).Decode(&site); err != nil {
		m.mu.Unlock()
		writeDetail(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	site.ID = id
	site.LastUpdated = upstreamNow()
	m.sites[id] = site
	m.mu.Unlock()

	writeJSON(w, http.StatusOK, site)
}

func (m *mockInventory) handleSiteDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}

	m.mu.Lock()
	_, found := m.sites[id]
	delete(m.sites, id)
	m.mu.Unlock()

	if !found {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- device handlers ---

func (m *mockInventory) handleDeviceList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	m.mu.Lock()
	var matched []inventoryDevice
	for _, d := range m.devices {
		if v := q.Get("tenant_id"); v != "" {
			want, err := strconv.ParseInt(v, 10, 64)
			if err != nil || d.Tenant == nil || *d.Tenant != want {
				continue
			}
		}
		if v := q.Get("site_id"); v != "" {
			want, err := strconv.ParseInt(v, 10, 64)
			if err != nil || d.Site == nil || *d.Site != want {
				continue
			}
		}
		matched = append(matched, d)
	}
	m.mu.Unlock()

	sortByID(matched, func(d inventoryDevice) int64 { return d.ID })
	total := len(matched)
	matched = applyPaging(matched, q)

	writeJSON(w, http.StatusOK, map[string]any{
		"count":    total,
		"next":     nil,
		"previous": nil,
		"results":  matched,
	})
}

func (m *mockInventory) handleDeviceCreate(w http.ResponseWriter, r *http.Request) {
	var device inventoryDevice
	if err := json.NewDecoder(r.Body).Decode(&device); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if device.Name == "" {
		writeDetail(w, http.StatusBadRequest, "name is required")
		return
	}

	m.mu.Lock()
	device.ID = m.nextID
	m.nextID++
	device.Created = upstreamNow()
	device.LastUpdated = device.Created
	m.devices[device.ID] = device
	m.mu.Unlock()

	writeJSON(w, http.StatusCreated, device)
}

func (m *mockInventory) handleDeviceGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}

	m.mu.Lock()
	device, found := m.devices[id]
	m.mu.Unlock()

	if !found {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}
	writeJSON(w, http.StatusOK, device)
}

func (m *mockInventory) handleDevicePatch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}

	m.mu.Lock()
	device, found := m.devices[id]
	if !found {
		m.mu.Unlock()
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}
	if err := json.NewDecoder(r.Body).Decode(&device); err != nil {
		m.mu.Unlock()
		writeDetail(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	device.ID = id
	device.LastUpdated = upstreamNow()
	m.devices[id] = device
	m.mu.Unlock()

	writeJSON(w, http.StatusOK, device)
}

func (m *mockInventory) handleDeviceDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}

	m.mu.Lock()
	_, found := m.devices[id]
	delete(m.devices, id)
	m.mu.Unlock()

	if !found {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- helpers ---

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeDetail writes a DCIM-style error body.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func upstreamNow() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func sortByID[T any](items []T, id func(T) int64) {
	sort.Slice(items, func(i, j int) bool { return id(items[i]) < id(items[j]) })
}

func applyPaging[T any](items []T, q url.Values) []T {
	get := func(key string) (int, bool) {
		v := q.Get(key)
		if v == "" {
			return 0, false
		}
		n, err := strconv.Atoi(v)
		return n, err == nil
	}
	if offset, ok := get("offset"); ok && offset > 0 {
		if offset >= len(items) {
			items = items[:0]
		} else {
			items = items[offset:]
		}
	}
	if limit, ok := get("limit"); ok && limit >= 0 && limit < len(items) {
		items = items[:limit]
	}
	if items == nil {
		items = []T{}
	}
	return items
}
