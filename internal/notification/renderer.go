package notification

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
	_ "time/tzdata"

	"github.com/cloud-wave-best-zizon/bookstore-platform/internal/domain"
	"go.uber.org/zap"
)

// Notification is a rendered, ready-to-send email.
type Notification struct {
	OrderID  string
	To       string
	Subject  string
	HTMLBody string
}

const orderDateLayout = "2 January 2006 15:04:05"

var confirmationTmpl = template.Must(template.New("order-confirmation").Parse(`<h2>Hi {{.Username}},</h2>
<p>Thank you for your purchase! Here are your order details:</p>
<ul>
  <li><strong>Order ID:</strong> {{.OrderID}}</li>
  <li><strong>Book:</strong> {{.Title}} — {{.Author}}</li>
  <li><strong>Quantity:</strong> {{.Quantity}}</li>
  <li><strong>Order Date:</strong> {{.OrderDate}} ({{.Zone}})</li>
</ul>
<p>We will process your order shortly and let you know when it ships.</p>
<br/>
<p>Warm regards,<br/>The Bookstore Team</p>
`))

type Renderer struct {
	loc *time.Location
}

// NewRenderer loads the display timezone, falling back to a fixed GMT+7 zone
// when the name cannot be resolved.
func NewRenderer(timezone string, logger *zap.Logger) *Renderer {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		logger.Warn("Unknown notification timezone, using GMT+7",
			zap.String("timezone", timezone),
			zap.Error(err))
		loc = time.FixedZone("GMT+7", 7*60*60)
	}
	return &Renderer{loc: loc}
}

func (r *Renderer) Location() *time.Location { return r.loc }

func (r *Renderer) Render(e domain.EnrichedOrderEvent) (Notification, error) {
	orderedAt, err := e.OrderedAt()
	if err != nil {
		return Notification{}, fmt.Errorf("parse createdAt %q: %w", e.CreatedAt, err)
	}
	local := orderedAt.In(r.loc)

	var buf bytes.Buffer
	err = confirmationTmpl.Execute(&buf, map[string]any{
		"Username":  e.User.Username,
		"OrderID":   e.ID,
		"Title":     e.Book.Title,
		"Author":    e.Book.Author,
		"Quantity":  e.Quantity,
		"OrderDate": local.Format(orderDateLayout),
		"Zone":      gmtLabel(local),
	})
	if err != nil {
		return Notification{}, fmt.Errorf("render template: %w", err)
	}

	return Notification{
		OrderID:  e.ID,
		To:       e.User.Email,
		Subject:  fmt.Sprintf("Order Confirmation (#%s)", e.ID),
		HTMLBody: buf.String(),
	}, nil
}

func gmtLabel(t time.Time) string {
	_, offset := t.Zone()
	h, m := offset/3600, (offset%3600)/60
	if m < 0 {
		m = -m
	}
	if m == 0 {
		return fmt.Sprintf("GMT%+d", h)
	}
	return fmt.Sprintf("GMT%+d:%02d", h, m)
}
