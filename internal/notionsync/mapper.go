package notionsync

import (
	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/jomei/notionapi"
)

// Property names of the budget database.
const (
	PropCategoryID = "Category ID"
	PropName       = "Name"
	PropAllocated  = "Allocated"
	PropSpent      = "Spent"
	PropRemaining  = "Remaining"
	PropColor      = "Color"
	PropUpdated    = "Updated"
)

func richText(content string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: content},
		},
	}
}

// CategoryToNotionProperties converts a budget category to page properties.
// The category id is the page title and the key used to find the page again.
func CategoryToNotionProperties(cat domain.BudgetCategory) notionapi.Properties {
	allocated, _ := cat.Allocated.Float64()
	spent, _ := cat.Spent.Float64()
	remaining, _ := cat.Remaining().Float64()

	props := notionapi.Properties{
		PropCategoryID: notionapi.TitleProperty{Title: richText(cat.ID)},
		PropName:       notionapi.RichTextProperty{RichText: richText(cat.Name)},
		PropAllocated:  notionapi.NumberProperty{Number: allocated},
		PropSpent:      notionapi.NumberProperty{Number: spent},
		PropRemaining:  notionapi.NumberProperty{Number: remaining},
	}

	if cat.Color != "" {
		props[PropColor] = notionapi.RichTextProperty{RichText: richText(cat.Color)}
	}

	if !cat.UpdatedAt.IsZero() {
		updated := notionapi.Date(cat.UpdatedAt)
		props[PropUpdated] = notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: &updated},
		}
	}

	return props
}

// extractCategoryID returns the title of a page, or "" when it has none.
func extractCategoryID(page notionapi.Page) string {
	if prop, ok := page.Properties[PropCategoryID]; ok {
		if title, ok := prop.(*notionapi.TitleProperty); ok {
			if len(title.Title) > 0 {
				return title.Title[0].PlainText
			}
		}
	}
	return ""
}
