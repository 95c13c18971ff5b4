package domain

// NotAvailable is substituted for any attribute the device did not report.
const NotAvailable = "N/A"

// Attribute keys as reported by the charger's "info" and EVSE objects
const (
	AttrSystemIP          = "System IP Address"
	AttrHostname          = "Hostname"
	AttrSystemTemperature = "System Temperature"
	AttrChargerVendor     = "Charger Vendor"
	AttrChargerModel      = "Charger Model"
	AttrACVoltage         = "AC Voltage"
	AttrStatus            = "Status"
	AttrAvailablePower    = "Available Power"
	AttrCurrent           = "Current"
	AttrCurrentOffered    = "Current Offered"
	AttrEnergy            = "Energy"
	AttrEVSEConnectorType = "EVSE Connector Type"
	AttrEVSEPPState       = "EVSE PP State"
)

// DeviceInfo is the flattened status record of one charger.
// Attribute values keep whatever JSON type the device sent (string or number).
type DeviceInfo struct {
	IP                string `json:"ip"`
	SystemIP          any    `json:"system_ip"`
	Hostname          any    `json:"hostname_info"`
	SystemTemp        any    `json:"system_temp"`
	ChargerVendor     any    `json:"charger_vendor"`
	ChargerModel      any    `json:"charger_model"`
	ACVoltage         any    `json:"ac_voltage"`
	Status            any    `json:"status"`
	AvailablePower    any    `json:"available_power"`
	Current           any    `json:"current"`
	CurrentOffered    any    `json:"current_offered"`
	Energy            any    `json:"energy"`
	EVSEConnectorType any    `json:"evse_connector_type"`
	EVSEPPState       any    `json:"evse_pp_state"`
	Success           bool   `json:"success"`
}

// MergeInfo shallow-merges the selected EVSE record over the top-level info
// record. EVSE values win on key collision. Neither input is modified.
func MergeInfo(info, evse map[string]any) map[string]any {
	merged := make(map[string]any, len(info)+len(evse))
	for k, v := range info {
		merged[k] = v
	}
	for k, v := range evse {
		merged[k] = v
	}
	return merged
}

// NewDeviceInfo builds the status record for unit from a merged attribute map.
// Only absent attributes are defaulted; a reported null stays null. The
// reported hostname defaults to the unit's own hostname rather than
// NotAvailable.
func NewDeviceInfo(unit Unit, merged map[string]any) DeviceInfo {
	get := func(key string) any {
		if v, ok := merged[key]; ok {
			return v
		}
		return NotAvailable
	}

	hostname := any(unit.DisplayHostname())
	if v, ok := merged[AttrHostname]; ok {
		hostname = v
	}

	return DeviceInfo{
		IP:                unit.Address,
		SystemIP:          get(AttrSystemIP),
		Hostname:          hostname,
		SystemTemp:        get(AttrSystemTemperature),
		ChargerVendor:     get(AttrChargerVendor),
		ChargerModel:      get(AttrChargerModel),
		ACVoltage:         get(AttrACVoltage),
		Status:            get(AttrStatus),
		AvailablePower:    get(AttrAvailablePower),
		Current:           get(AttrCurrent),
		CurrentOffered:    get(AttrCurrentOffered),
		Energy:            get(AttrEnergy),
		EVSEConnectorType: get(AttrEVSEConnectorType),
		EVSEPPState:       get(AttrEVSEPPState),
		Success:           true,
	}
}
