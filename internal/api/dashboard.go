package api

import (
	"html/template"
	"net/http"
	"strconv"

	"github.com/readysetinsure/dashboard/internal/customer"
	"github.com/readysetinsure/dashboard/internal/gradient"
	"github.com/readysetinsure/dashboard/internal/weekday"
)

type queueRow struct {
	PolicyNumber string
	Name         string
	Email        string
	Phone        string
	Date         string
	Status       customer.Status
	Tone         string
	Age          string
}

type dashboardData struct {
	Queue   []queueRow
	Heatmap []heatBucket
	Total   int
	Low     string
	Mid     string
	High    string
	LoadErr string
	CallsOn bool
}

var toneHex = map[string]string{
	"red":    gradient.Red.Hex(),
	"yellow": gradient.Yellow.Hex(),
	"green":  gradient.Green.Hex(),
}

var dashboardTmpl = template.Must(template.New("dashboard").Funcs(template.FuncMap{
	"tone": func(t string) string { return toneHex[t] },
}).Parse(dashboardHTML))

// GET / renders the employee queue and the weekday heatmap.
func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	data := dashboardData{
		Low:     s.ramp.Low.Hex(),
		Mid:     s.ramp.Mid.Hex(),
		High:    s.ramp.High.Hex(),
		CallsOn: s.calls != nil && s.calls.Enabled(),
	}

	now := s.now()
	queue, err := s.directory.ListByStatus(r.Context(), customer.StatusIncomplete)
	if err != nil {
		s.logger.Error("dashboard: failed to load queue", "error", err)
		data.LoadErr = "The customer queue is unavailable right now."
	}
	for _, c := range queue {
		row := queueRow{
			PolicyNumber: c.PolicyNumber,
			Name:         c.Name,
			Email:        c.Email,
			Phone:        c.Phone,
			Status:       c.Status,
			Tone:         c.Status.Tone(),
		}
		if c.Date != nil {
			row.Date = *c.Date
		}
		if age, ok := c.Age(now); ok {
			row.Age = strconv.Itoa(age)
		}
		data.Queue = append(data.Queue, row)
	}

	all, err := s.customersFor(r.Context(), "")
	if err != nil {
		s.logger.Error("dashboard: failed to load stats", "error", err)
		all = queue
	}
	h := weekday.Aggregate(all, customer.DateField)
	data.Heatmap = s.heatmap(h)
	data.Total = h.Sum()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := dashboardTmpl.Execute(w, data); err != nil {
		s.logger.Error("dashboard: render failed", "error", err)
	}
}

const dashboardHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Ready Set Insure · Employee Dashboard</title>
  <style>
    body { font-family: system-ui, sans-serif; margin: 0; background: #f8fafc; color: #0f172a; }
    header { background: #0f172a; color: #f8fafc; padding: 16px 24px; }
    main { display: grid; grid-template-columns: 2fr 1fr; gap: 24px; padding: 24px; }
    section { background: #fff; border-radius: 8px; padding: 16px; box-shadow: 0 1px 3px rgba(0,0,0,.1); }
    table { width: 100%; border-collapse: collapse; font-size: 14px; }
    th, td { text-align: left; padding: 8px; border-bottom: 1px solid #e2e8f0; }
    .badge { display: inline-block; padding: 2px 8px; border-radius: 999px; color: #fff; font-size: 12px; }
    .heat { display: grid; grid-template-columns: repeat(7, 1fr); gap: 6px; }
    .cell { border-radius: 6px; padding: 12px 4px; text-align: center; color: #fff; font-weight: 600; }
    .cell small { display: block; font-weight: 400; }
    .legend { display: flex; gap: 8px; margin-top: 12px; font-size: 12px; align-items: center; }
    .swatch { width: 14px; height: 14px; border-radius: 3px; display: inline-block; }
    .error { color: #b91c1c; }
  </style>
</head>
<body>
  <header><h1>Customer Assistance Queue</h1></header>
  <main>
    <section>
      <h2>Needs follow-up</h2>
      {{if .LoadErr}}<p class="error">{{.LoadErr}}</p>{{end}}
      <table>
        <thead><tr><th>Policy</th><th>Name</th><th>Email</th><th>Phone</th><th>Opened</th><th>Age</th><th>Status</th></tr></thead>
        <tbody>
        {{range .Queue}}
          <tr>
            <td><a href="/api/v1/customers/{{.PolicyNumber}}">{{.PolicyNumber}}</a></td>
            <td>{{.Name}}</td>
            <td>{{.Email}}</td>
            <td>{{.Phone}}</td>
            <td>{{.Date}}</td>
            <td>{{.Age}}</td>
            <td><span class="badge" style="background: {{tone .Tone}}">{{.Status}}</span></td>
          </tr>
        {{else}}
          <tr><td colspan="7">No customers are waiting.</td></tr>
        {{end}}
        </tbody>
      </table>
      {{if not .CallsOn}}<p><small>Outbound calling is not configured.</small></p>{{end}}
    </section>
    <section>
      <h2>Requests by weekday</h2>
      <p>{{.Total}} requests</p>
      <div class="heat">
        {{range .Heatmap}}
          <div class="cell" style="background: {{.Hex}}">{{.Label}}<small>{{.Total}}</small></div>
        {{end}}
      </div>
      <div class="legend">
        <span class="swatch" style="background: {{.Low}}"></span>quiet
        <span class="swatch" style="background: {{.Mid}}"></span>
        <span class="swatch" style="background: {{.High}}"></span>busy
      </div>
    </section>
  </main>
</body>
</html>
`
