package fulfillment

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"
	"time"

	"github.com/jianxion/Dining-Concierge-Chatbot/internal/domain"
)

var suggestionsTmpl = template.Must(template.New("suggestions").Parse(`<div style="font-family:Arial,Helvetica,sans-serif">
  <p>Here are {{len .Rows}} {{.Cuisine}} restaurant suggestion(s) in Manhattan:</p>
  <table style="border-collapse:collapse;width:100%;">
{{- range .Rows}}
    <tr>
      <td style="padding:8px 12px;border-bottom:1px solid #eee;"><b>{{.Name}}</b><br/>
        <span style="color:#555">{{.Address}}</span><br/>
        <span>Rating: {{.Rating}} ⭐ ({{.Reviews}} reviews) | Zip: {{.Zip}}</span><br/>
        <a href="{{.MapLink}}">Map</a>
      </td>
    </tr>
{{- end}}
  </table>
  <p style="color:#888;font-size:12px;margin-top:16px;">Sent {{.SentAt}}</p>
</div>
`))

type suggestionsEmail struct {
	Cuisine string
	SentAt  string
	Rows    []suggestionRow
}

type suggestionRow struct {
	Name    string
	Address string
	Rating  string
	Reviews int
	Zip     string
	MapLink string
}

// renderSuggestionsHTML renders the suggestions email in record order.
// Missing optional fields degrade to placeholders rather than dropping
// the row.
func renderSuggestionsHTML(titledCuisine string, recs []domain.Restaurant, sentAt time.Time) (string, error) {
	rows := make([]suggestionRow, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, suggestionRow{
			Name:    orFallback(r.Name, r.BusinessID),
			Address: orFallback(r.Address, "—"),
			Rating:  strconv.FormatFloat(r.Rating, 'f', -1, 64),
			Reviews: r.ReviewCount,
			Zip:     orFallback(r.ZipCode, "—"),
			MapLink: mapLink(r.Coordinates),
		})
	}

	var buf bytes.Buffer
	err := suggestionsTmpl.Execute(&buf, suggestionsEmail{
		Cuisine: titledCuisine,
		SentAt:  sentAt.Format(time.RFC3339),
		Rows:    rows,
	})
	if err != nil {
		return "", fmt.Errorf("fulfillment: execute suggestions template: %w", err)
	}
	return buf.String(), nil
}

func orFallback(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func mapLink(c *domain.Coordinates) string {
	if c == nil || c.Lat == 0 || c.Lon == 0 {
		return "#"
	}
	return fmt.Sprintf("https://www.google.com/maps?q=%s,%s",
		strconv.FormatFloat(c.Lat, 'f', -1, 64),
		strconv.FormatFloat(c.Lon, 'f', -1, 64))
}
