package http

import (
	"domoticz-hue-emulator/internal/domain/model"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

const (
	bridgeModelID    = "BSB002"
	bridgeSWVersion  = "1967054020"
	bridgeAPIVersion = "1.56.0"
	datastoreVersion = "131"

	maxBodySize = 64 << 10
)

func (s *Server) handleDescription(w http.ResponseWriter, r *http.Request) {
	id := s.bridge.Identity()
	w.Header().Set("Content-Type", "text/xml")
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8" ?>
<root xmlns="urn:schemas-upnp-org:device-1-0">
<specVersion>
<major>1</major>
<minor>0</minor>
</specVersion>
<URLBase>http://%s:%d/</URLBase>
<device>
<deviceType>urn:schemas-upnp-org:device:Basic:1</deviceType>
<friendlyName>Philips hue (%s)</friendlyName>
<manufacturer>Royal Philips Electronics</manufacturer>
<manufacturerURL>http://www.philips.com</manufacturerURL>
<modelDescription>Philips hue Personal Wireless Lighting</modelDescription>
<modelName>Philips hue bridge 2015</modelName>
<modelNumber>%s</modelNumber>
<modelURL>http://www.meethue.com</modelURL>
<serialNumber>%s</serialNumber>
<UDN>uuid:%s</UDN>
<presentationURL>index.html</presentationURL>
</device>
</root>
`, s.opts.Host, s.opts.Port, s.opts.Host, bridgeModelID, id.Serial(), id.UUID)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil || len(body) == 0 {
		writeError(w, http.StatusOK, errMissingParameters, "/", "invalid/missing parameters in body")
		return
	}
	var req struct {
		DeviceType *string `json:"devicetype"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusOK, errInvalidJSON, "/", "body contains invalid json")
		return
	}
	if req.DeviceType == nil || *req.DeviceType == "" {
		writeError(w, http.StatusOK, errMissingParameters, "/", "invalid/missing parameters in body")
		return
	}

	username, err := s.bridge.Pair(r.Context(), *req.DeviceType)
	if err != nil {
		s.logger.Error("pairing failed", "error", err)
		writeError(w, http.StatusOK, errInternal, "/", "Internal error, "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, []hueResult{success("username", username)})
}

type whitelistEntry struct {
	LastUseDate string `json:"last use date"`
	CreateDate  string `json:"create date"`
	Name        string `json:"name"`
}

type configJSON struct {
	Name             string                    `json:"name"`
	ZigbeeChannel    int                       `json:"zigbeechannel"`
	BridgeID         string                    `json:"bridgeid"`
	MAC              string                    `json:"mac"`
	DHCP             bool                      `json:"dhcp"`
	IPAddress        string                    `json:"ipaddress"`
	Netmask          string                    `json:"netmask"`
	Gateway          string                    `json:"gateway"`
	UTC              string                    `json:"UTC"`
	LocalTime        string                    `json:"localtime"`
	ModelID          string                    `json:"modelid"`
	DatastoreVersion string                    `json:"datastoreversion"`
	SWVersion        string                    `json:"swversion"`
	APIVersion       string                    `json:"apiversion"`
	LinkButton       bool                      `json:"linkbutton"`
	PortalServices   bool                      `json:"portalservices"`
	FactoryNew       bool                      `json:"factorynew"`
	ReplacesBridgeID *string                   `json:"replacesbridgeid"`
	StarterKitID     string                    `json:"starterkitid"`
	Whitelist        map[string]whitelistEntry `json:"whitelist,omitempty"`
}

func (s *Server) config(withWhitelist bool) configJSON {
	id := s.bridge.Identity()
	now := time.Now()
	cfg := configJSON{
		Name:             "Philips hue",
		ZigbeeChannel:    15,
		BridgeID:         id.BridgeID,
		MAC:              id.MAC,
		DHCP:             true,
		IPAddress:        s.opts.Host,
		Netmask:          "255.255.255.0",
		UTC:              now.UTC().Format("2006-01-02T15:04:05"),
		LocalTime:        now.Format("2006-01-02T15:04:05"),
		ModelID:          bridgeModelID,
		DatastoreVersion: datastoreVersion,
		SWVersion:        bridgeSWVersion,
		APIVersion:       bridgeAPIVersion,
		LinkButton:       true,
	}
	if withWhitelist {
		cfg.Whitelist = make(map[string]whitelistEntry, len(id.Usernames))
		for _, u := range id.Usernames {
			cfg.Whitelist[u] = whitelistEntry{LastUseDate: cfg.UTC, CreateDate: cfg.UTC, Name: "hue-emulator#client"}
		}
	}
	return cfg
}

// handlePublicConfig answers the unauthenticated discovery probe.
func (s *Server) handlePublicConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.config(false))
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.config(true))
}

func (s *Server) handleFullState(w http.ResponseWriter, r *http.Request) {
	empty := map[string]any{}
	writeJSON(w, http.StatusOK, map[string]any{
		"lights":        s.lights(r),
		"groups":        empty,
		"config":        s.config(true),
		"schedules":     empty,
		"scenes":        empty,
		"rules":         empty,
		"sensors":       empty,
		"resourcelinks": empty,
	})
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (s *Server) lights(r *http.Request) map[string]lightJSON {
	views := s.bridge.ListLights(r.Context())
	lights := make(map[string]lightJSON, len(views))
	for _, v := range views {
		lights[v.Light.ID] = toLightJSON(v)
	}
	return lights
}

func (s *Server) handleGetLights(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.lights(r))
}

func (s *Server) handleGetLight(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	v, err := s.bridge.GetLight(r.Context(), id)
	if err != nil {
		s.writeLightError(w, "/lights/"+id, err)
		return
	}
	writeJSON(w, http.StatusOK, toLightJSON(v))
}

func (s *Server) handleSetLightState(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	address := "/lights/" + id + "/state"

	if _, err := s.bridge.GetLight(r.Context(), id); err != nil {
		s.writeLightError(w, address, err)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusOK, errInvalidJSON, address, "body contains invalid json")
		return
	}
	update, results, err := parseStateUpdate(body, address)
	switch {
	case errors.Is(err, errEmptyBody):
		writeError(w, http.StatusOK, errMissingParameters, address, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusOK, errInvalidJSON, address, err.Error())
		return
	}

	if !update.Empty() {
		outcome, err := s.bridge.SetLightState(r.Context(), id, update)
		if err != nil {
			s.writeLightError(w, address, err)
			return
		}
		for _, o := range outcome {
			results = append(results, stateResult(address, o))
		}
	}
	sortResults(results)
	s.logger.Debug("light state set", "light", id, "results", len(results))
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) writeLightError(w http.ResponseWriter, address string, err error) {
	if errors.Is(err, model.ErrLightNotFound) {
		writeError(w, http.StatusNotFound, errResourceNotFound, address,
			fmt.Sprintf("resource, %s, not available", address))
		return
	}
	s.logger.Error("light request failed", "address", address, "error", err)
	writeError(w, http.StatusInternalServerError, errInternal, address, "Internal error, "+err.Error())
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Path
	writeError(w, http.StatusNotFound, errResourceNotFound, address,
		fmt.Sprintf("resource, %s, not available", address))
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, errMethodNotAvailable, r.URL.Path,
		fmt.Sprintf("method, %s, not available for resource, %s", r.Method, r.URL.Path))
}
