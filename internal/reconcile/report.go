package reconcile

import "time"

// Status clasifica el resultado de un usuario dentro de una corrida.
type Status string

const (
	StatusAdded         Status = "added"
	StatusRoleAssigned  Status = "role_assigned"
	StatusAlreadyMember Status = "already_member"
	StatusSkipped       Status = "skipped"
	StatusFailed        Status = "failed"
)

// Outcome es el resultado por usuario, en el orden de entrada.
// Ephemeral: vive lo que vive el reporte, nunca se persiste.
type Outcome struct {
	ExternalID  string `json:"external_id"`
	DisplayName string `json:"display_name"`
	Status      Status `json:"status"`
	Reason      string `json:"reason,omitempty"`
}

// Report agrega los outcomes de una corrida completa (o parcial si se canceló).
type Report struct {
	RunID      string    `json:"run_id"`
	GuildID    string    `json:"target_guild_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Requested  int       `json:"total_users"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
	Outcomes   []Outcome `json:"outcomes"`
	Partial    bool      `json:"partial,omitempty"`
}

// append registra un outcome y actualiza los contadores.
// Succeeded = Added + RoleAssigned; Skipped y AlreadyMember quedan fuera
// de succeeded y de failed.
func (r *Report) append(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	switch o.Status {
	case StatusAdded, StatusRoleAssigned:
		r.Succeeded++
	case StatusFailed:
		r.Failed++
	case StatusSkipped:
		r.Skipped++
	}
}
