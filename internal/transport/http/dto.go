package http

import (
	"github.com/Edness1/ColorCompete-sub001/internal/template"
)

// RenderPreviewRequestDTO renders a template against sample variables
// without sending anything. Either a built-in template name or an inline
// template must be supplied.
type RenderPreviewRequestDTO struct {
	TemplateName string                    `json:"template_name,omitempty"`
	Template     *template.MessageTemplate `json:"template,omitempty"`
	Variables    map[string]any            `json:"variables,omitempty"`
}

// RenderPreviewResponseDTO is the rendered result.
type RenderPreviewResponseDTO struct {
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text,omitempty"`
}

// TriggerAutomationRequestDTO fires an automation immediately. The
// context becomes the render scope for the dispatched batch.
type TriggerAutomationRequestDTO struct {
	Context map[string]any `json:"context,omitempty"`
}

// RunDrawingRequestDTO runs the current period's drawing for one tier.
type RunDrawingRequestDTO struct {
	Tier string `json:"tier" validate:"required,oneof=free lite pro"`
}

// DispatchCampaignRequestDTO dispatches a campaign. Preview renders and
// sends without mutating campaign state.
type DispatchCampaignRequestDTO struct {
	Preview bool `json:"preview,omitempty"`
}
