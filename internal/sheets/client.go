// Package sheets reads the bank statement spreadsheet through the
// Google Sheets API.
package sheets

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/raoumer8387/alkhidmat-transaction-bot/internal/services/sheetsync"
)

// The bank exports its letterhead into rows 1-4; headers live in row 5
// and statement data starts at row 6.
const (
	headerRow   = 5
	firstRecord = 6
)

// Client is a read-only snapshot source for one worksheet.
type Client struct {
	svc           *sheetsapi.Service
	spreadsheetID string
	worksheet     string
}

func NewClient(ctx context.Context, credentialsFile, spreadsheetID, worksheet string) (*Client, error) {
	svc, err := sheetsapi.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheetsapi.SpreadsheetsReadonlyScope),
	)
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, worksheet: worksheet}, nil
}

// Fetch returns every data row tagged with its absolute sheet position.
func (c *Client) Fetch(ctx context.Context) ([]sheetsync.Row, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.worksheet).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("reading worksheet %q: %w", c.worksheet, err)
	}

	values := resp.Values
	if len(values) < headerRow {
		return nil, fmt.Errorf("worksheet %q has %d rows, headers expected in row %d", c.worksheet, len(values), headerRow)
	}

	headers := make([]string, len(values[headerRow-1]))
	empty := true
	for i, cell := range values[headerRow-1] {
		headers[i] = strings.TrimSpace(fmt.Sprint(cell))
		if headers[i] != "" {
			empty = false
		}
	}
	if empty {
		return nil, fmt.Errorf("worksheet %q header row %d is empty", c.worksheet, headerRow)
	}

	var rows []sheetsync.Row
	for i, raw := range values[headerRow:] {
		cells := make(map[string]string, len(headers))
		for j, header := range headers {
			if header == "" {
				continue
			}
			if j < len(raw) {
				cells[header] = strings.TrimSpace(fmt.Sprint(raw[j]))
			} else {
				cells[header] = ""
			}
		}
		rows = append(rows, sheetsync.Row{Position: firstRecord + i, Cells: cells})
	}
	return rows, nil
}
