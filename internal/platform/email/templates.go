package email

import (
	"bytes"
	"html/template"
	"strings"
)

var (
	invitationHTML = template.Must(template.New("invitation").Parse(
		`<p>{{.Inviter}} invited you to join <strong>{{.Business}}</strong> on Cardsheets.</p>` +
			`<p><a href="{{.Link}}">Accept the invitation</a>. The link expires on {{.ExpiresAt}}.</p>`))

	newCardHTML = template.Must(template.New("newCard").Parse(
		`<p>A new <strong>{{.TypeOfCards}}</strong> card was created in {{.Business}}.</p>` +
			`<p><a href="{{.Link}}">Open card {{.CardID}}</a></p>`))
)

type InvitationData struct {
	Inviter   string
	Business  string
	Link      string
	ExpiresAt string
}

// InvitationMessage renders the email sent for a new team invitation.
func InvitationMessage(to string, data InvitationData) (Message, error) {
	var html bytes.Buffer
	if err := invitationHTML.Execute(&html, data); err != nil {
		return Message{}, err
	}
	return Message{
		To:      to,
		Subject: "You're invited to " + data.Business,
		TextBody: data.Inviter + " invited you to join " + data.Business + ".\n" +
			"Accept the invitation: " + data.Link + "\n" +
			"The link expires on " + data.ExpiresAt + ".",
		HTMLBody: html.String(),
	}, nil
}

type NewCardData struct {
	Business    string
	TypeOfCards string
	CardID      string
	Link        string
}

// NewCardMessage renders the notification sent to a business owner when a
// card is created.
func NewCardMessage(to string, data NewCardData) (Message, error) {
	var html bytes.Buffer
	if err := newCardHTML.Execute(&html, data); err != nil {
		return Message{}, err
	}
	return Message{
		To:       to,
		Subject:  "New " + data.TypeOfCards + " card",
		TextBody: "A new " + data.TypeOfCards + " card was created in " + data.Business + ": " + data.Link,
		HTMLBody: html.String(),
	}, nil
}

// Link joins the application base URL and a path.
func Link(appURL, path string) string {
	return strings.TrimRight(appURL, "/") + "/" + strings.TrimLeft(path, "/")
}
