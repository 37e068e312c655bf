package respond

import (
	"context"
	"fmt"
	"time"

	"github.com/textback/textback/internal/database/models"
	"github.com/textback/textback/internal/directory"
	"github.com/textback/textback/internal/genai"
)

// Stage names, recorded with every outbound message for attribution.
const (
	StageAI       = "ai"
	StageLocation = "location"
	StageBusiness = "business_type"
	StageGeneric  = "generic"
)

const genericMessage = "Sorry we missed your call! We'll get back to you as soon as we can."

// Generator produces AI reply copy. Satisfied by *genai.Client.
type Generator interface {
	GenerateReply(ctx context.Context, req genai.Request) (string, genai.Usage, error)
}

// DefaultChain assembles the standard fallback chain. gen may be nil, in
// which case the AI stage is omitted. onUsage, when non-nil, receives token
// usage for successful generations.
func DefaultChain(gen Generator, genTimeout time.Duration, onUsage func(in Input, u genai.Usage)) []Stage {
	var stages []Stage
	if gen != nil {
		stages = append(stages, AIStage(gen, genTimeout, onUsage))
	}
	return append(stages, LocationStage(), BusinessTypeStage(), GenericStage())
}

// AIStage generates personalised copy for tenants on an AI-capable plan.
// Lower tiers pass straight through to the template stages.
func AIStage(gen Generator, timeout time.Duration, onUsage func(in Input, u genai.Usage)) Stage {
	return Stage{
		Name:    StageAI,
		Timeout: timeout,
		Run: func(ctx context.Context, in Input) (string, error) {
			t := in.Tenant
			if t == nil || (t.Tier != models.TierPro && t.Tier != models.TierMulti) {
				return "", nil
			}

			body, usage, err := gen.GenerateReply(ctx, genai.Request{
				BusinessName: t.DisplayName(),
				Category:     t.Category,
				FAQ:          t.FAQ,
				OrderingLink: t.OrderingLink,
				QuoteLink:    t.QuoteLink,
				CallerNumber: in.CallerNumber,
			})
			if err != nil {
				return "", err
			}
			if onUsage != nil {
				onUsage(in, usage)
			}
			return body, nil
		},
	}
}

// LocationStage templates a reply for numbers that resolved to a specific
// location, naming the location the caller actually dialled.
func LocationStage() Stage {
	return Stage{
		Name: StageLocation,
		Run: func(ctx context.Context, in Input) (string, error) {
			t := in.Tenant
			if t == nil || !t.IsLocation {
				return "", nil
			}

			msg := fmt.Sprintf("Hi! You've reached %s. Sorry we missed your call.", t.DisplayName())
			if link := bestLink(t); link != "" {
				msg += " " + link
			}
			msg += " We'll call you back shortly."
			return msg, nil
		},
	}
}

// BusinessTypeStage templates a reply from the tenant's business category
// and configured links.
func BusinessTypeStage() Stage {
	return Stage{
		Name: StageBusiness,
		Run: func(ctx context.Context, in Input) (string, error) {
			t := in.Tenant
			if t == nil {
				return "", nil
			}

			switch {
			case t.OrderingLink != "":
				return fmt.Sprintf(
					"Thanks for calling %s! Sorry we missed you. You can place an order online at %s and we'll have it ready.",
					t.DisplayName(), t.OrderingLink), nil
			case t.QuoteLink != "":
				return fmt.Sprintf(
					"Thanks for calling %s! Sorry we missed you. Request a free quote at %s and we'll follow up right away.",
					t.DisplayName(), t.QuoteLink), nil
			}

			if tmpl, ok := categoryTemplates[t.Category]; ok {
				return fmt.Sprintf(tmpl, t.DisplayName()), nil
			}
			if t.Name != "" {
				return fmt.Sprintf("Thanks for calling %s! Sorry we missed you. We'll get back to you as soon as possible.", t.DisplayName()), nil
			}
			return "", nil
		},
	}
}

// GenericStage is the terminal stage. It always produces a message.
func GenericStage() Stage {
	return Stage{
		Name: StageGeneric,
		Run: func(ctx context.Context, in Input) (string, error) {
			return genericMessage, nil
		},
	}
}

// categoryTemplates keys are tenant categories. Each takes the display name.
var categoryTemplates = map[string]string{
	"restaurant": "Thanks for calling %s! Sorry we missed you. Text us your order or question and we'll reply right away.",
	"contractor": "Thanks for calling %s! Sorry we missed you. Text us a few details about your project and we'll get back to you with next steps.",
	"salon":      "Thanks for calling %s! Sorry we missed you. Text us to book or change an appointment and we'll confirm shortly.",
	"medical":    "Thanks for calling %s. Sorry we missed your call. For appointments, please text us your name and preferred time. If this is an emergency, call 911.",
	"auto":       "Thanks for calling %s! Sorry we missed you. Text us your vehicle and the issue and we'll get you scheduled.",
	"retail":     "Thanks for calling %s! Sorry we missed you. Text us what you're looking for and we'll check availability.",
}

// bestLink returns a sentence offering the tenant's most actionable link,
// or an empty string if none is configured.
func bestLink(t *directory.Tenant) string {
	switch {
	case t.OrderingLink != "":
		return fmt.Sprintf("You can order online at %s.", t.OrderingLink)
	case t.QuoteLink != "":
		return fmt.Sprintf("Request a quote at %s.", t.QuoteLink)
	}
	return ""
}
