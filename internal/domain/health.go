package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	Detail      string `json:"detail,omitempty"`
	LastChecked string `json:"lastChecked"`
}

// CoachMetrics is returned by GET /v1/metrics/coach.
type CoachMetrics struct {
	ActiveSessions       int64   `json:"activeSessions"`
	RoutinesGenerated    int64   `json:"routinesGenerated"`
	AnalysesCaptured     int64   `json:"analysesCaptured"`
	CalendarExports      int64   `json:"calendarExports"`
	CollaboratorCalls    int64   `json:"collaboratorCalls"`
	CollaboratorErrors   int64   `json:"collaboratorErrors"`
	ErrorRate            float64 `json:"errorRate"`
	BusyRejections       int64   `json:"busyRejections"`
	AvgTokensPerCall     float64 `json:"avgTokensPerCall"`
	SessionLookupHitRate float64 `json:"sessionLookupHitRate"`
	Period               string  `json:"period"`
}
