// Package google exports generated occurrences to a Google Sheets ledger.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"backoffice/internal/core"
	"backoffice/internal/ports"
)

const DefaultSheetName = "Recurring"

var _ ports.OccurrenceExporter = (*Client)(nil)

// Config selects the spreadsheet and the service-account credentials.
// CredentialsJSON wins over CredentialsFile.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

// Client appends one row per occurrence to the "<year> <SheetName>" tab of
// the occurrence's year. Rows are laid out as
// ID | Date | Description | Amount | Currency | Category | Note | Rule.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string
}

func New(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	sheet := strings.TrimSpace(cfg.SheetName)
	if sheet == "" {
		sheet = DefaultSheetName
	}

	if len(opts) == 0 {
		creds, err := credentialsOption(ctx, cfg)
		if err != nil {
			return nil, err
		}
		opts = []goption.ClientOption{creds, goption.WithScopes(gsheet.SpreadsheetsScope)}
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created",
		"spreadsheet_id", spreadsheetID,
		"sheet", sheet)

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetBase:     sheet,
	}, nil
}

// credentialsOption resolves service-account credentials, falling back to
// GOOGLE_APPLICATION_CREDENTIALS when neither field is set.
func credentialsOption(ctx context.Context, cfg Config) (goption.ClientOption, error) {
	inline := strings.TrimSpace(cfg.CredentialsJSON)
	file := strings.TrimSpace(cfg.CredentialsFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		slog.InfoContext(ctx, "Using inline service account credentials", "json_length", len(inline))
		return goption.WithCredentialsJSON([]byte(inline)), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		slog.InfoContext(ctx, "Read service account credentials", "path", file, "size", len(b))
		return goption.WithCredentialsJSON(b), nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// AppendOccurrence writes o as a new row unless a row with its ID is already
// present, in which case the existing row reference is returned.
func (c *Client) AppendOccurrence(ctx context.Context, o core.Occurrence) (string, error) {
	if o.ID == "" {
		return "", errors.New("occurrence has no id")
	}
	if err := o.OccurrenceDate.Validate(); err != nil {
		return "", fmt.Errorf("invalid occurrence date: %w", err)
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	sheet := yearPrefixedName(c.sheetBase, o.OccurrenceDate.Year())

	ids, err := c.readCol(ctx, sheet, "A:A")
	if err != nil {
		return "", err
	}
	for i, id := range ids {
		if id == o.ID {
			ref := fmt.Sprintf("%s!A%d:H%d", sheet, i+1, i+1)
			slog.InfoContext(ctx, "Occurrence already exported",
				"occurrence_id", o.ID,
				"ref", ref)
			return ref, nil
		}
	}

	vr := &gsheet.ValueRange{Values: [][]any{occurrenceRow(o)}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, sheet+"!A:H", vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", sheet, err)
	}

	ref := sheet + "!A:H"
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	return ref, nil
}

func occurrenceRow(o core.Occurrence) []any {
	return []any{
		o.ID,
		o.OccurrenceDate.String(),
		o.Description,
		o.Amount.InexactFloat64(),
		o.Currency,
		o.Category,
		o.Note,
		o.SourceID,
	}
}

// readCol returns the trimmed first cell of every row in rng, keeping empty
// rows so indexes map to row numbers.
func (c *Client) readCol(ctx context.Context, sheetName, col string) ([]string, error) {
	rng := fmt.Sprintf("%s!%s", sheetName, col)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	out := make([]string, len(resp.Values))
	for i, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		out[i] = strings.TrimSpace(fmt.Sprint(row[0]))
	}
	return out, nil
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
