package notionsync

import (
	"strings"
	"time"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/finance-agent/internal/analysis"
	"github.com/dvloznov/finance-agent/internal/domain"
)

// Property names of the goals database.
const (
	PropGoalID              = "Goal ID"
	PropName                = "Name"
	PropDescription         = "Description"
	PropCategory            = "Category"
	PropPriority            = "Priority"
	PropTargetAmount        = "Target Amount"
	PropCurrentAmount       = "Current Amount"
	PropMonthlyContribution = "Monthly Contribution"
	PropDeadline            = "Deadline"
	PropStatus              = "Status"
	PropProgress            = "Progress"
	PropAmountRemaining     = "Amount Remaining"
	PropProjectedAmount     = "Projected Amount"
	PropOnTrack             = "On Track"
	PropLastSynced          = "Last Synced"
)

func text(s string) []notionapi.RichText {
	return []notionapi.RichText{{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: s}}}
}

func dateProperty(t time.Time) notionapi.DateProperty {
	d := notionapi.Date(t)
	return notionapi.DateProperty{Date: &notionapi.DateObject{Start: &d}}
}

func plainText(rt []notionapi.RichText) string {
	var b strings.Builder
	for _, r := range rt {
		b.WriteString(r.PlainText)
	}
	return b.String()
}

// GoalFromPage reads a goal from a queried page. ok is false when the page has
// no goal id.
func GoalFromPage(page notionapi.Page) (g domain.Goal, ok bool) {
	for name, prop := range page.Properties {
		switch p := prop.(type) {
		case *notionapi.TitleProperty:
			if name == PropGoalID {
				g.ID = plainText(p.Title)
			}
		case *notionapi.RichTextProperty:
			switch name {
			case PropName:
				g.Name = plainText(p.RichText)
			case PropDescription:
				g.Description = plainText(p.RichText)
			}
		case *notionapi.NumberProperty:
			switch name {
			case PropTargetAmount:
				g.TargetAmount = p.Number
			case PropCurrentAmount:
				g.CurrentAmount = p.Number
			case PropMonthlyContribution:
				g.MonthlyContribution = p.Number
			}
		case *notionapi.SelectProperty:
			switch name {
			case PropCategory:
				g.Category = p.Select.Name
			case PropPriority:
				g.Priority = p.Select.Name
			case PropStatus:
				g.Status = strings.ToLower(p.Select.Name)
			}
		case *notionapi.DateProperty:
			if name == PropDeadline && p.Date != nil && p.Date.Start != nil {
				g.Deadline = time.Time(*p.Date.Start).Format(domain.DateLayout)
			}
		}
	}
	if g.ID == "" {
		return domain.Goal{}, false
	}
	if g.Name == "" {
		g.Name = g.ID
	}
	if g.Status == "" {
		g.Status = domain.GoalStatusActive
	}
	return g, true
}

// GoalIDFromPage returns the goal id title of page, or "".
func GoalIDFromPage(page notionapi.Page) string {
	if prop, ok := page.Properties[PropGoalID]; ok {
		if title, ok := prop.(*notionapi.TitleProperty); ok {
			return plainText(title.Title)
		}
	}
	return ""
}

// ProgressProperties converts a goal analysis into the properties written on
// the goal's page.
func ProgressProperties(id string, a analysis.GoalAnalysis, now time.Time) notionapi.Properties {
	props := notionapi.Properties{
		PropGoalID:          notionapi.TitleProperty{Title: text(id)},
		PropCurrentAmount:   notionapi.NumberProperty{Number: a.Goal.CurrentAmount},
		PropTargetAmount:    notionapi.NumberProperty{Number: a.Goal.TargetAmount},
		PropProgress:        notionapi.NumberProperty{Number: a.Progress.ProgressPercentage},
		PropAmountRemaining: notionapi.NumberProperty{Number: a.Progress.AmountRemaining},
		PropProjectedAmount: notionapi.NumberProperty{Number: a.Projection.ProjectedFinalAmount},
		PropOnTrack:         notionapi.CheckboxProperty{Checkbox: a.Projection.OnTrack},
		PropLastSynced:      dateProperty(now),
	}
	if a.Goal.Name != "" {
		props[PropName] = notionapi.RichTextProperty{RichText: text(a.Goal.Name)}
	}
	return props
}
