package email

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/dropDatabas3/guildgate/internal/observability/logger"
	"github.com/dropDatabas3/guildgate/internal/reconcile"
)

var reportHTML = template.Must(template.New("report").Parse(`<!doctype html>
<html><body style="font-family:sans-serif">
<h2>Reconciliación de guild {{.GuildID}}</h2>
<p>Run {{.RunID}} — {{.StartedAt.Format "2006-01-02 15:04:05 MST"}}{{if .Partial}} (parcial){{end}}</p>
<table cellpadding="6" border="1" style="border-collapse:collapse">
<tr><td>Solicitados</td><td>{{.Requested}}</td></tr>
<tr><td>Exitosos</td><td>{{.Succeeded}}</td></tr>
<tr><td>Fallidos</td><td>{{.Failed}}</td></tr>
<tr><td>Salteados</td><td>{{.Skipped}}</td></tr>
</table>
{{if .Outcomes}}<h3>Detalle</h3>
<table cellpadding="4" border="1" style="border-collapse:collapse">
<tr><th>Usuario</th><th>Status</th><th>Motivo</th></tr>
{{range .Outcomes}}<tr><td>{{.DisplayName}} ({{.ExternalID}})</td><td>{{.Status}}</td><td>{{.Reason}}</td></tr>
{{end}}</table>{{end}}
</body></html>`))

// ReportMailer arma y envía el resumen de una corrida. Con sender nil o
// destinatario vacío es un no-op; el envío nunca afecta el resultado de la
// corrida.
type ReportMailer struct {
	sender Sender
	to     string
}

func NewReportMailer(sender Sender, to string) *ReportMailer {
	return &ReportMailer{sender: sender, to: to}
}

func (m *ReportMailer) SendReport(rep *reconcile.Report) {
	if m == nil || m.sender == nil || m.to == "" || rep == nil {
		return
	}
	subject, html, text := RenderReport(rep)
	if err := m.sender.Send(m.to, subject, html, text); err != nil {
		logger.Named("email").Warn("report mail failed",
			logger.RunID(rep.RunID),
			logger.Err(err),
		)
	}
}

// RenderReport produce subject + cuerpo html y texto. Los outcomes nunca
// incluyen tokens, solo identidad y status.
func RenderReport(rep *reconcile.Report) (subject, html, text string) {
	subject = fmt.Sprintf("Reconciliación %s: %d ok, %d fallidos, %d salteados",
		rep.GuildID, rep.Succeeded, rep.Failed, rep.Skipped)

	var hb bytes.Buffer
	if err := reportHTML.Execute(&hb, rep); err == nil {
		html = hb.String()
	}

	var tb strings.Builder
	fmt.Fprintf(&tb, "Run %s — guild %s\n", rep.RunID, rep.GuildID)
	fmt.Fprintf(&tb, "Solicitados: %d, exitosos: %d, fallidos: %d, salteados: %d\n",
		rep.Requested, rep.Succeeded, rep.Failed, rep.Skipped)
	if rep.Partial {
		tb.WriteString("Corrida parcial (cancelada antes de terminar)\n")
	}
	for _, o := range rep.Outcomes {
		fmt.Fprintf(&tb, "- %s (%s): %s", o.DisplayName, o.ExternalID, o.Status)
		if o.Reason != "" {
			fmt.Fprintf(&tb, " (%s)", o.Reason)
		}
		tb.WriteString("\n")
	}
	return subject, html, tb.String()
}
