package notionsync

import (
	"context"
	"fmt"

	"github.com/dvloznov/finance-dashboard/internal/logger"
	"github.com/jomei/notionapi"
)

// pageSize is the Notion maximum for database queries.
const pageSize = 100

// Result counts what a sync did.
type Result struct {
	Created  int
	Updated  int
	Archived int
	Failed   int
}

// SyncCategories mirrors the user's budget categories into a Notion database.
// Pages are matched on the Category ID title, so repeated runs update in
// place. Pages whose category no longer exists, or that have no Category
// ID, are archived. Per-page failures are logged and counted; the sync keeps
// going.
func SyncCategories(ctx context.Context, lister CategoryLister, notionClient NotionService, notionDBID, userID string, dryRun bool) (*Result, error) {
	log := logger.FromContext(ctx).With().Str("user_id", userID).Bool("dry_run", dryRun).Logger()

	categories, err := lister.ListCategories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	log.Info().Int("category_count", len(categories)).Msg("Retrieved budget categories")

	pages, err := queryAllNotionPages(ctx, notionClient, notionDBID)
	if err != nil {
		return nil, fmt.Errorf("failed to query Notion pages: %w", err)
	}
	log.Info().Int("notion_page_count", len(pages)).Msg("Retrieved existing Notion pages")

	valid := make(map[string]bool, len(categories))
	for _, c := range categories {
		valid[c.ID] = true
	}

	res := &Result{}
	existing := make(map[string]string, len(pages))
	for _, page := range pages {
		id := extractCategoryID(page)
		_, dup := existing[id]
		if id != "" && valid[id] && !dup {
			existing[id] = string(page.ID)
			continue
		}

		if dryRun {
			log.Info().Str("category_id", id).Str("page_id", string(page.ID)).Msg("[DRY RUN] Would archive stale Notion page")
			res.Archived++
			continue
		}
		if err := notionClient.ArchivePage(ctx, string(page.ID)); err != nil {
			log.Warn().Err(err).Str("category_id", id).Str("page_id", string(page.ID)).Msg("Failed to archive stale Notion page")
			res.Failed++
			continue
		}
		res.Archived++
	}

	for _, cat := range categories {
		pageID, found := existing[cat.ID]

		if dryRun {
			if found {
				log.Info().Str("category_id", cat.ID).Str("page_id", pageID).Msg("[DRY RUN] Would update Notion page")
				res.Updated++
			} else {
				log.Info().Str("category_id", cat.ID).Msg("[DRY RUN] Would create Notion page")
				res.Created++
			}
			continue
		}

		props := CategoryToNotionProperties(cat)
		if found {
			if _, err := notionClient.UpdatePage(ctx, pageID, props); err != nil {
				log.Warn().Err(err).Str("category_id", cat.ID).Str("page_id", pageID).Msg("Failed to update Notion page")
				res.Failed++
				continue
			}
			res.Updated++
			continue
		}

		page, err := notionClient.CreatePage(ctx, notionDBID, props)
		if err != nil {
			log.Warn().Err(err).Str("category_id", cat.ID).Msg("Failed to create Notion page")
			res.Failed++
			continue
		}
		log.Debug().Str("category_id", cat.ID).Str("page_id", string(page.ID)).Msg("Created Notion page")
		res.Created++
	}

	log.Info().
		Int("created", res.Created).
		Int("updated", res.Updated).
		Int("archived", res.Archived).
		Int("failed", res.Failed).
		Msg("Category sync completed")

	return res, nil
}

// queryAllNotionPages follows the query cursor until every page is read.
func queryAllNotionPages(ctx context.Context, notionClient NotionService, databaseID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: pageSize,
		}

		// Only set StartCursor if we have a cursor value
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notionClient.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}
