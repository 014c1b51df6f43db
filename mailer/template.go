package mailer

import "strings"

// Template is a subject line plus a body containing {{placeholder}} markers.
type Template struct {
	Subject string
	Body    string
}

// DefaultActivationTemplate is used when no custom activation template is
// configured. Recognized placeholders: activationLink, supportEmail,
// currentYear.
var DefaultActivationTemplate = Template{
	Subject: "Activate Your Account",
	Body: `<p>Welcome!</p>
<p>Click the link below to activate your account. The link expires in 24 hours.</p>
<p><a href="{{activationLink}}">{{activationLink}}</a></p>
<p>Questions? Contact us at {{supportEmail}}.</p>
<p>&copy; {{currentYear}}</p>`,
}

// DefaultResetTemplate is used when no custom password-reset template is
// configured. Recognized placeholders: resetLink, supportEmail, currentYear.
var DefaultResetTemplate = Template{
	Subject: "Reset Your Password",
	Body: `<p>We received a request to reset your password.</p>
<p>Click the link below to choose a new one. The link expires in 24 hours and works once.</p>
<p><a href="{{resetLink}}">{{resetLink}}</a></p>
<p>If you did not request this, you can ignore this email.</p>
<p>Questions? Contact us at {{supportEmail}}.</p>
<p>&copy; {{currentYear}}</p>`,
}

// Render substitutes every {{key}} marker present in vars. Markers without a
// matching var are left untouched.
func Render(template string, vars map[string]string) string {
	if len(vars) == 0 {
		return template
	}
	pairs := make([]string, 0, len(vars)*2)
	for key, value := range vars {
		pairs = append(pairs, "{{"+key+"}}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
