package transport

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pitabwire/netgate/internal/inventory"
	"github.com/pitabwire/netgate/internal/tenant"
	"github.com/pitabwire/netgate/model"
)

// tenantFromPath verifies that the tenant in the URL matches the tenant the
// request authenticated as. The mismatch message stays opaque; a caller
// probing another tenant's URL space learns nothing.
func tenantFromPath(r *http.Request) (string, error) {
	rctx := model.RequestContextFrom(r.Context())
	pathTenant := chi.URLParam(r, "tenantId")
	if rctx == nil || pathTenant == "" || pathTenant != rctx.TenantID {
		return "", model.NewUnauthorizedError("missing or invalid tenant ID")
	}
	return pathTenant, nil
}

// listParamsFromQuery reads pagination and filter params. The tenant filter
// is never taken from the caller; the access layer forces it.
func listParamsFromQuery(r *http.Request) inventory.ListParams {
	var params inventory.ListParams
	q := r.URL.Query()
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 {
		params.Limit = &v
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil && v >= 0 {
		params.Offset = &v
	}
	if v, err := strconv.ParseInt(q.Get("site_id"), 10, 64); err == nil && v > 0 {
		params.SiteID = &v
	}
	return params
}

func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	return id, err == nil && id > 0
}

func handleSiteList(access *tenant.Access) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appTenant, err := tenantFromPath(r)
		if err != nil {
			WriteError(w, r, err)
			return
		}

		list, err := access.ListSites(r.Context(), appTenant, listParamsFromQuery(r))
		if err != nil {
			WriteError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, list)
	}
}

func handleSiteGet(access *tenant.Access) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appTenant, err := tenantFromPath(r)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		id, ok := parseID(chi.URLParam(r, "siteId"))
		if !ok {
			WriteError(w, r, model.NewBadRequestError("invalid site ID"))
			return
		}

		site, err := access.GetSite(r.Context(), appTenant, id)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, site)
	}
}

func handleSiteCreate(access *tenant.Access) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appTenant, err := tenantFromPath(r)
		if err != nil {
			WriteError(w, r, err)
			return
		}

		var site model.Site
		if err := json.NewDecoder(r.Body).Decode(&site); err != nil {
			WriteError(w, r, model.NewBadRequestError("invalid JSON body"))
			return
		}

		created, err := access.CreateSite(r.Context(), appTenant, &site)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusCreated, created)
	}
}

func handleSiteUpdate(access *tenant.Access) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appTenant, err := tenantFromPath(r)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		id, ok := parseID(chi.URLParam(r, "siteId"))
		if !ok {
			WriteError(w, r, model.NewBadRequestError("invalid site ID"))
			return
		}

		var site model.Site
		if err := json.NewDecoder(r.Body).Decode(&site); err != nil {
			WriteError(w, r, model.NewBadRequestError("invalid JSON body"))
			return
		}

		updated, err := access.UpdateSite(r.Context(), appTenant, id, &site)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, updated)
	}
}

func handleSiteDelete(access *tenant.Access) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appTenant, err := tenantFromPath(r)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		id, ok := parseID(chi.URLParam(r, "siteId"))
		if !ok {
			WriteError(w, r, model.NewBadRequestError("invalid site ID"))
			return
		}

		if err := access.DeleteSite(r.Context(), appTenant, id); err != nil {
			WriteError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleDeviceList(access *tenant.Access) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appTenant, err := tenantFromPath(r)
		if err != nil {
			WriteError(w, r, err)
			return
		}

		list, err := access.ListDevices(r.Context(), appTenant, listParamsFromQuery(r))
		if err != nil {
			WriteError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, list)
	}
}

func handleDeviceGet(access *tenant.Access) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appTenant, err := tenantFromPath(r)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		id, ok := parseID(chi.URLParam(r, "deviceId"))
		if !ok {
			WriteError(w, r, model.NewBadRequestError("invalid device ID"))
			return
		}

		device, err := access.GetDevice(r.Context(), appTenant, id)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, device)
	}
}

func handleDeviceCreate(access *tenant.Access) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appTenant, err := tenantFromPath(r)
		if err != nil {
			WriteError(w, r, err)
			return
		}

		var device model.Device
		if err := json.NewDecoder(r.Body).Decode(&device); err != nil {
			WriteError(w, r, model.NewBadRequestError("invalid JSON body"))
			return
		}

		created, err := access.CreateDevice(r.Context(), appTenant, &device)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusCreated, created)
	}
}

func handleDeviceUpdate(access *tenant.Access) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appTenant, err := tenantFromPath(r)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		id, ok := parseID(chi.URLParam(r, "deviceId"))
		if !ok {
			WriteError(w, r, model.NewBadRequestError("invalid device ID"))
			return
		}

		var device model.Device
		if err := json.NewDecoder(r.Body).Decode(&device); err != nil {
			WriteError(w, r, model.NewBadRequestError("invalid JSON body"))
			return
		}

		updated, err := access.UpdateDevice(r.Context(), appTenant, id, &device)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, updated)
	}
}

func handleDeviceDelete(access *tenant.Access) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appTenant, err := tenantFromPath(r)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		id, ok := parseID(chi.URLParam(r, "deviceId"))
		if !ok {
			WriteError(w, r, model.NewBadRequestError("invalid device ID"))
			return
		}

		if err := access.DeleteDevice(r.Context(), appTenant, id); err != nil {
			WriteError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
