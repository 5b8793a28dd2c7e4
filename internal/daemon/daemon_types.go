package daemon

import (
	"github.com/adcondev/relay-daemon/internal/server"
)

// HealthResponse representa el estado de salud del servicio de relay.
type HealthResponse struct {
	Status   string               `json:"status"`
	Listener ListenerStatus       `json:"listener"`
	Clients  server.RegistryStats `json:"clients"`
	Accounts int                  `json:"accounts"`
	Queue    QueueStatus          `json:"queue"`
	Worker   WorkerStatus         `json:"worker"`
	Logs     LogStatus            `json:"logs"`
	Build    BuildInfo            `json:"build"`
	Uptime   int                  `json:"uptime_seconds"`
}

// ListenerStatus representa el estado del listener TCP.
type ListenerStatus struct {
	Accepting bool   `json:"accepting"`
	Addr      string `json:"addr"`
}

// QueueStatus representa el estado de la cola de relay.
type QueueStatus struct {
	Current     int     `json:"current"`
	Capacity    int     `json:"capacity"`
	Utilization float64 `json:"utilization"`
}

// WorkerStatus representa el estado del trabajador de relay.
type WorkerStatus struct {
	Running          bool  `json:"running"`
	JobsRelayed      int64 `json:"jobs_relayed"`
	JobsFailed       int64 `json:"jobs_failed"`
	Deliveries       int64 `json:"deliveries"`
	DeliveriesFailed int64 `json:"deliveries_failed"`
}

// LogStatus describe el archivo de log y el espejo en consola.
type LogStatus struct {
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
	Console   bool   `json:"console"`
	Verbose   bool   `json:"verbose"`
}

// BuildInfo contiene información sobre la compilación del servicio.
type BuildInfo struct {
	Env  string `json:"env"`
	Date string `json:"date"`
	Time string `json:"time"`
}

// AdminResponse es la respuesta de las rutas /admin.
type AdminResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}
