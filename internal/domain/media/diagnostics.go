package media

// FetchDiagnostics records how a remote URL import went.
// Durations are milliseconds; a zero phase was skipped (e.g. TLS on http).
type FetchDiagnostics struct {
	URL          string  `json:"url"`
	FinalURL     string  `json:"final_url,omitempty"`
	ResolvedIP   string  `json:"resolved_ip,omitempty"`
	StatusCode   int     `json:"status_code,omitempty"`
	Attempts     int     `json:"attempts"`
	Redirects    int     `json:"redirects"`
	Bytes        int64   `json:"bytes"`
	ContentType  string  `json:"content_type,omitempty"`
	DNSMs        float64 `json:"dns_ms"`
	ConnectMs    float64 `json:"connect_ms"`
	TLSMs        float64 `json:"tls_ms"`
	FirstByteMs  float64 `json:"first_byte_ms"`
	DownloadMs   float64 `json:"download_ms"`
	TotalMs      float64 `json:"total_ms"`
	ReusedConn   bool    `json:"reused_conn"`
	ErrorMessage string  `json:"error,omitempty"`
}
