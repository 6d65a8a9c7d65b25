package mailer

import (
	htmltpl "html/template"
	texttpl "text/template"

	"storefront/models"
)

type resetData struct {
	ResetURL  string
	ExpiresIn string
}

type orderData struct {
	Username string
	Event    models.OrderEvent
}

var resetText = texttpl.Must(texttpl.New("reset_text").Parse(`Hello,

You have requested to reset your password for your Noir account.

Please open the following link to reset your password:
{{.ResetURL}}

If you did not request this password reset, please ignore this email.
This link will expire in {{.ExpiresIn}}.

Best regards,
Noir Team
`))

var resetHTML = htmltpl.Must(htmltpl.New("reset_html").Parse(`<!DOCTYPE html>
<html lang="en">
<body style="font-family: Arial, sans-serif; background-color: #f9f9f9; padding: 20px;">
	<div style="max-width: 600px; margin: auto; background-color: white; padding: 20px; border-radius: 10px;">
		<h2 style="color: #333;">Reset your password</h2>
		<p>You have requested to reset your password for your Noir account.</p>
		<p style="text-align: center; margin: 30px 0;">
			<a href="{{.ResetURL}}" style="background-color: #111; color: white; padding: 12px 30px; text-decoration: none; border-radius: 5px;">Reset my password</a>
		</p>
		<p style="font-size: 14px; color: #888;">This link will expire in {{.ExpiresIn}}. If you did not request it, ignore this email.</p>
		<p style="margin-top: 30px; color: #555;">Best regards,<br><strong>Noir Team</strong></p>
	</div>
</body>
</html>`))

var orderPlacedText = texttpl.Must(texttpl.New("order_placed_text").Parse(`Dear {{.Username}},

Thank you for your order! Your order #{{.Event.OrderID}} has been placed.

{{range .Event.Items}}- product {{.ProductID}} x {{.Quantity}} @ {{.Price.StringFixed 2}} = {{.Subtotal.StringFixed 2}}
{{end}}
Total: {{.Event.Total.StringFixed 2}}

Best regards,
Noir Team
`))

var orderPlacedHTML = htmltpl.Must(htmltpl.New("order_placed_html").Parse(`<!DOCTYPE html>
<html lang="en">
<body style="font-family: Arial, sans-serif; background-color: #f9f9f9; padding: 20px;">
	<div style="max-width: 600px; margin: auto; background-color: white; padding: 20px; border-radius: 10px;">
		<h2 style="color: #333;">Order #{{.Event.OrderID}} confirmed</h2>
		<p>Dear {{.Username}},</p>
		<table style="width: 100%; border-collapse: collapse; margin: 20px 0;">
			<thead>
				<tr style="background-color: #f0f0f0;"><th>Product</th><th>Quantity</th><th>Unit price</th><th>Subtotal</th></tr>
			</thead>
			<tbody>
			{{range .Event.Items}}<tr><td>#{{.ProductID}}</td><td>{{.Quantity}}</td><td>{{.Price.StringFixed 2}}</td><td>{{.Subtotal.StringFixed 2}}</td></tr>
			{{end}}</tbody>
			<tfoot>
				<tr><td colspan="3" style="text-align: right; font-weight: bold;">Total:</td><td style="font-weight: bold;">{{.Event.Total.StringFixed 2}}</td></tr>
			</tfoot>
		</table>
		<p style="margin-top: 30px; color: #555;">Best regards,<br><strong>Noir Team</strong></p>
	</div>
</body>
</html>`))

var orderCancelledText = texttpl.Must(texttpl.New("order_cancelled_text").Parse(`Dear {{.Username}},

Your order #{{.Event.OrderID}} (total {{.Event.Total.StringFixed 2}}) has been cancelled.

Best regards,
Noir Team
`))

var orderCancelledHTML = htmltpl.Must(htmltpl.New("order_cancelled_html").Parse(`<!DOCTYPE html>
<html lang="en">
<body style="font-family: Arial, sans-serif; background-color: #f9f9f9; padding: 20px;">
	<div style="max-width: 600px; margin: auto; background-color: white; padding: 20px; border-radius: 10px;">
		<h2 style="color: #333;">Order #{{.Event.OrderID}} cancelled</h2>
		<p>Dear {{.Username}},</p>
		<p>Your order totalling {{.Event.Total.StringFixed 2}} has been cancelled.</p>
		<p style="margin-top: 30px; color: #555;">Best regards,<br><strong>Noir Team</strong></p>
	</div>
</body>
</html>`))
