package notionsync

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"
)

// Client implements NotionService with the notionapi SDK.
type Client struct {
	client *notionapi.Client
}

// NewClient creates a Client authenticated with an integration token.
func NewClient(token string) *Client {
	return &Client{client: notionapi.NewClient(notionapi.Token(token))}
}

func (c *Client) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	page, err := c.client.Page.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(databaseID),
		},
		Properties: properties,
	})
	if err != nil {
		return nil, fmt.Errorf("CreatePage: %w", err)
	}
	return page, nil
}

func (c *Client) UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error) {
	page, err := c.client.Page.Update(ctx, notionapi.PageID(pageID), &notionapi.PageUpdateRequest{
		Properties: properties,
	})
	if err != nil {
		return nil, fmt.Errorf("UpdatePage %s: %w", pageID, err)
	}
	return page, nil
}

func (c *Client) QueryDatabase(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	resp, err := c.client.Database.Query(ctx, notionapi.DatabaseID(databaseID), filter)
	if err != nil {
		return nil, fmt.Errorf("QueryDatabase: %w", err)
	}
	return resp, nil
}

func (c *Client) ArchivePage(ctx context.Context, pageID string) error {
	_, err := c.client.Page.Update(ctx, notionapi.PageID(pageID), &notionapi.PageUpdateRequest{
		Archived:   true,
		Properties: notionapi.Properties{},
	})
	if err != nil {
		return fmt.Errorf("ArchivePage %s: %w", pageID, err)
	}
	return nil
}

var _ NotionService = (*Client)(nil)
