package model

// FacilityPoint is a single typed point facility in projected grid
// coordinates (easting/northing, meters). Immutable after load; downstream
// stages hold references into the catalog, never copies.
type FacilityPoint struct {
	ID       string  `json:"id"`
	Category string  `json:"category"`
	Easting  float64 `json:"easting"`
	Northing float64 `json:"northing"`
	Name     string  `json:"name,omitempty"`
	Address  string  `json:"address,omitempty"`
	District string  `json:"district,omitempty"`
}
