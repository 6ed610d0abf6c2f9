package template

// MessageTemplate is the renderable content of an automation or campaign:
// a subject line plus HTML and plain-text bodies. Either body may be
// empty, but not both.
type MessageTemplate struct {
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text"`
}

// RenderedMessage is a MessageTemplate expanded against one scope.
type RenderedMessage struct {
	Subject string
	HTML    string
	Text    string
}

// RenderMessage renders all three parts of tpl against scope.
func RenderMessage(tpl MessageTemplate, scope map[string]any) RenderedMessage {
	return RenderedMessage{
		Subject: Render(tpl.Subject, scope),
		HTML:    Render(tpl.HTML, scope),
		Text:    Render(tpl.Text, scope),
	}
}

// builtinTemplates is the preview catalog used by the render-preview
// admin operation and as fallbacks when an automation has no template of
// its own.
var builtinTemplates = map[string]MessageTemplate{
	"drawing_winner": {
		Subject: "Congratulations {{user_name}}, you won the {{drawing_month}} drawing!",
		HTML: "<p>Hi {{user_name}},</p>" +
			"<p>You were selected as the winner of the {{drawing_month}} {{drawing_year}} " +
			"{{subscription_tier}} drawing. Your ${{prize_amount}} gift card is on its way.</p>" +
			"{{#redeem_url}}<p><a href=\"{{redeem_url}}\">Redeem your gift card</a></p>{{/redeem_url}}" +
			"<p><a href=\"{{unsubscribe_url}}\">Unsubscribe</a></p>",
		Text: "Hi {{user_name}},\n\nYou won the {{drawing_month}} {{drawing_year}} " +
			"{{subscription_tier}} drawing. Your ${{prize_amount}} gift card is on its way.\n" +
			"{{#redeem_url}}Redeem: {{redeem_url}}\n{{/redeem_url}}",
	},
	"welcome": {
		Subject: "Welcome to ColorCompete, {{user_name}}!",
		HTML: "<p>Hi {{user_name}}, welcome aboard.</p>" +
			"<p><a href=\"{{unsubscribe_url}}\">Unsubscribe</a></p>",
		Text: "Hi {{user_name}}, welcome aboard.\n",
	},
	"contest_winner": {
		Subject: "{{user_name}}, your submission won {{contest_name}}!",
		HTML: "<p>Hi {{user_name}},</p><p>Your entry took first place in {{contest_name}} " +
			"with {{vote_count}} votes.</p>" +
			"<p><a href=\"{{unsubscribe_url}}\">Unsubscribe</a></p>",
		Text: "Hi {{user_name}}, your entry took first place in {{contest_name}} with {{vote_count}} votes.\n",
	},
}

// Builtin returns the named built-in template.
func Builtin(name string) (MessageTemplate, bool) {
	tpl, ok := builtinTemplates[name]
	return tpl, ok
}

// BuiltinNames lists the available built-in template names.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtinTemplates))
	for name := range builtinTemplates {
		names = append(names, name)
	}
	return names
}
