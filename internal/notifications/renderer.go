package notifications

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

var (
	channelTypes = []ChannelType{ChannelEmail, ChannelMattermost}
	messageTypes = []MessageType{MessageTypeCreated, MessageTypeUpdated, MessageTypeResolved}
)

// Renderer renders notifications from templates.
type Renderer struct {
	templates map[string]*template.Template
}

// NewRenderer creates a new renderer and loads all templates.
func NewRenderer() (*Renderer, error) {
	funcMap := template.FuncMap{
		"title":         titleCase,
		"upper":         strings.ToUpper,
		"formatTime":    formatTime,
		"statusEmoji":   statusEmoji,
		"priorityEmoji": priorityEmoji,
	}

	r := &Renderer{templates: make(map[string]*template.Template)}

	for _, channel := range channelTypes {
		for _, msg := range messageTypes {
			name := templateName(channel, msg)
			filename := fmt.Sprintf("templates/%s.tmpl", name)

			content, err := templatesFS.ReadFile(filename)
			if err != nil {
				return nil, fmt.Errorf("read template %s: %w", filename, err)
			}

			tmpl, err := template.New(name).Funcs(funcMap).Parse(string(content))
			if err != nil {
				return nil, fmt.Errorf("parse template %s: %w", name, err)
			}

			r.templates[name] = tmpl
		}
	}

	return r, nil
}

// Render renders a notification payload for the channel.
// Returns subject and body.
func (r *Renderer) Render(channel ChannelType, payload NotificationPayload) (subject, body string, err error) {
	name := templateName(channel, payload.MessageType)
	tmpl, ok := r.templates[name]
	if !ok {
		return "", "", fmt.Errorf("template not found: %s", name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, payload); err != nil {
		return "", "", fmt.Errorf("execute template %s: %w", name, err)
	}

	return renderSubject(payload), strings.TrimSpace(buf.String()), nil
}

func templateName(channel ChannelType, msg MessageType) string {
	return fmt.Sprintf("%s_%s", channel, msg)
}

func renderSubject(payload NotificationPayload) string {
	var prefix string
	switch payload.MessageType {
	case MessageTypeCreated:
		prefix = "New Incident"
	case MessageTypeUpdated:
		prefix = "Updated"
	case MessageTypeResolved:
		prefix = titleCase(payload.Incident.Status)
	default:
		prefix = "Notification"
	}

	return fmt.Sprintf("[%s] %s: %s", prefix, payload.Incident.ID, payload.Incident.ShortDescription)
}

// Template functions

var titleCaser = cases.Title(language.English)

func titleCase(s string) string {
	return titleCaser.String(s)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("Jan 2, 2006 15:04 UTC")
}

func statusEmoji(status string) string {
	switch strings.ToLower(status) {
	case "new":
		return "🆕"
	case "in progress":
		return "🔧"
	case "on hold":
		return "⏸️"
	case "resolved":
		return "✅"
	case "closed":
		return "🔒"
	default:
		return "📋"
	}
}

// priorityEmoji takes the "N - Label" form produced by Priority.String.
func priorityEmoji(priority string) string {
	switch {
	case strings.HasPrefix(priority, "1"):
		return "🔴"
	case strings.HasPrefix(priority, "2"):
		return "🟠"
	case strings.HasPrefix(priority, "3"):
		return "🟡"
	default:
		return "⚪"
	}
}
