package models

// DeviceFingerprint identifies the machine during enrollment
type DeviceFingerprint struct {
	MACAddress   string  `json:"mac_address"`
	SerialNumber string  `json:"serial_number,omitempty"`
	Processor    string  `json:"processor,omitempty"`
	Architecture string  `json:"architecture"`
	MemoryGB     float64 `json:"memory_gb,omitempty"`
	Hostname     string  `json:"hostname,omitempty"`
	Platform     string  `json:"platform,omitempty"`
}
