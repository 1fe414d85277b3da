// Package supabase inserts chunk records through the Supabase PostgREST API.
package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/supabase-community/postgrest-go"

	"document-ingest/internal/models"
)

const restPath = "/rest/v1"

// Client writes records into one table of a Supabase project.
type Client struct {
	rest  *postgrest.Client
	table string
}

// NewClient connects to the project at projectURL using the service role key.
func NewClient(projectURL, serviceKey, schema, table string) (*Client, error) {
	if projectURL == "" || serviceKey == "" {
		return nil, errors.New("supabase url and service role key are required")
	}
	if table == "" {
		table = models.DefaultTable
	}
	rest := postgrest.NewClient(strings.TrimRight(projectURL, "/")+restPath, schema, map[string]string{
		"apikey":        serviceKey,
		"Authorization": "Bearer " + serviceKey,
	})
	if rest.ClientError != nil {
		return nil, fmt.Errorf("create postgrest client: %w", rest.ClientError)
	}
	log.Debug().Str("url", projectURL).Str("table", table).Msg("Supabase client ready")
	return &Client{rest: rest, table: table}, nil
}

// InsertRecords sends the records as one bulk insert request.
func (c *Client) InsertRecords(ctx context.Context, records []models.StoredRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	// Marshal up front: postgrest-go stores a marshal failure on the shared client.
	body, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	if _, _, err := c.rest.From(c.table).Insert(json.RawMessage(body), false, "", "minimal", "").Execute(); err != nil {
		return fmt.Errorf("insert into %s: %w", c.table, err)
	}
	return nil
}
